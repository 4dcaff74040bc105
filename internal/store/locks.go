package store

import (
	"sort"
	"sync"
)

// PlayerLocks hands out one mutex per (user, session) pair. Every
// read-modify-write of a player state must run while holding its lock.
type PlayerLocks struct {
	mu    sync.Mutex
	locks map[playerKey]*sync.Mutex
}

func NewPlayerLocks() *PlayerLocks {
	return &PlayerLocks{locks: map[playerKey]*sync.Mutex{}}
}

// Lock acquires the locks of all given users in one session and returns
// the matching unlock. Keys are taken in ascending user id order so two
// callers locking overlapping sets cannot deadlock. Duplicate ids are
// locked once.
func (l *PlayerLocks) Lock(sessionID int64, userIDs ...int64) (unlock func()) {
	ids := append([]int64(nil), userIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	held := make([]*sync.Mutex, 0, len(ids))
	for i, id := range ids {
		if i > 0 && ids[i-1] == id {
			continue
		}
		m := l.get(playerKey{userID: id, sessionID: sessionID})
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

func (l *PlayerLocks) get(key playerKey) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	return m
}
