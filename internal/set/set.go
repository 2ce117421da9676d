// Package set tracks which cluster members advertise which node id.
package set

import (
	"sort"
	"sync"
)

// Owners maps node ids to the members advertising them. It is safe for
// concurrent use.
type Owners struct {
	sync.RWMutex

	byMember map[string]uint64
	byID     map[uint64]map[string]bool
}

func New() *Owners {
	return &Owners{
		byMember: make(map[string]uint64),
		byID:     make(map[uint64]map[string]bool),
	}
}

// Put records that member advertises id, replacing whatever it advertised before.
func (o *Owners) Put(member string, id uint64) {
	o.Lock()
	defer o.Unlock()

	o.remove(member)
	o.byMember[member] = id
	members, ok := o.byID[id]
	if !ok {
		members = make(map[string]bool)
		o.byID[id] = members
	}
	members[member] = true
}

func (o *Owners) Remove(member string) {
	o.Lock()
	defer o.Unlock()

	o.remove(member)
}

func (o *Owners) remove(member string) {
	id, ok := o.byMember[member]
	if !ok {
		return
	}
	delete(o.byMember, member)
	delete(o.byID[id], member)
	if len(o.byID[id]) == 0 {
		delete(o.byID, id)
	}
}

// Members lists the members advertising id, sorted.
func (o *Owners) Members(id uint64) []string {
	o.RLock()
	defer o.RUnlock()

	return sorted(o.byID[id])
}

// Conflicted reports whether more than one member advertises id.
func (o *Owners) Conflicted(id uint64) bool {
	o.RLock()
	defer o.RUnlock()

	return len(o.byID[id]) > 1
}

// Conflicts returns every id advertised by more than one member.
func (o *Owners) Conflicts() map[uint64][]string {
	o.RLock()
	defer o.RUnlock()

	out := make(map[uint64][]string)
	for id, members := range o.byID {
		if len(members) > 1 {
			out[id] = sorted(members)
		}
	}
	return out
}

// Len returns the number of members tracked.
func (o *Owners) Len() int {
	o.RLock()
	defer o.RUnlock()

	return len(o.byMember)
}

func sorted(members map[string]bool) []string {
	list := make([]string, 0, len(members))
	for m := range members {
		list = append(list, m)
	}
	sort.Strings(list)
	return list
}
