package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGroupLocksSerializeSameGroup(t *testing.T) {
	locks := NewGroupLocks()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("g1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestGroupLocksIndependentGroups(t *testing.T) {
	locks := NewGroupLocks()

	unlockA := locks.Lock("g1")
	defer unlockA()

	// A held lock on g1 must not block g2.
	done := make(chan struct{})
	go func() {
		unlockB := locks.Lock("g2")
		unlockB()
		close(done)
	}()
	<-done
}

func TestLockPairOppositeOrderDoesNotDeadlock(t *testing.T) {
	locks := NewGroupLocks()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unlock := locks.LockPair("g1", "g2")
			unlock()
		}()
		go func() {
			defer wg.Done()
			unlock := locks.LockPair("g2", "g1")
			unlock()
		}()
	}
	wg.Wait()
}

func TestLockPairSameGroup(t *testing.T) {
	locks := NewGroupLocks()

	unlock := locks.LockPair("g1", "g1")
	unlock()

	// The single underlying mutex must be reusable afterwards.
	unlock = locks.Lock("g1")
	unlock()
}
