package account

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

var (
	// ErrAlreadyRegistered is returned from Register if the address has
	// been assigned a user ID before.
	ErrAlreadyRegistered = errors.New("address already registered")

	// ErrUnknownUser is returned when resolving a user ID that was never
	// handed out.
	ErrUnknownUser = errors.New("unknown user id")

	// ErrUserSpaceExhausted is returned if the 64 bit user ID space has
	// run out. This is fatal, the directory can't allocate any further
	// IDs.
	ErrUserSpaceExhausted = errors.New("user id space exhausted")
)

// Address is an opaque external account identifier. The directory doesn't
// interpret it, it only guarantees the bijection between addresses and the
// compact user IDs the order keys carry.
type Address string

// Directory is the bidirectional address to user ID map. IDs are handed out
// consecutively starting at zero and are permanent once assigned.
type Directory struct {
	mtx sync.RWMutex

	userIDs  map[Address]uint64
	addrs    map[uint64]Address
	numUsers uint64
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		userIDs: make(map[Address]uint64),
		addrs:   make(map[uint64]Address),
	}
}

// LoadDirectory reconstructs a directory from the persisted ID to address
// map. The IDs must be consecutive starting at zero.
func LoadDirectory(addrs map[uint64]Address) (*Directory, error) {
	d := NewDirectory()
	if err := d.Load(addrs); err != nil {
		return nil, err
	}
	return d, nil
}

// Load replaces the directory's content with the persisted ID to address
// map. The IDs must be consecutive starting at zero.
func (d *Directory) Load(addrs map[uint64]Address) error {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	userIDs := make(map[Address]uint64, len(addrs))
	idMap := make(map[uint64]Address, len(addrs))
	for id, addr := range addrs {
		if id >= uint64(len(addrs)) {
			return fmt.Errorf("non-consecutive user id %d in "+
				"directory of %d users", id, len(addrs))
		}
		idMap[id] = addr
		userIDs[addr] = id
	}
	if len(userIDs) != len(addrs) {
		return errors.New("duplicate address in directory")
	}

	d.userIDs = userIDs
	d.addrs = idMap
	d.numUsers = uint64(len(addrs))

	return nil
}

// GetOrRegister returns the user ID for the given address, assigning the
// next free ID if the address is new. The second return value reports
// whether a new ID was assigned.
func (d *Directory) GetOrRegister(addr Address) (uint64, bool, error) {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	if id, ok := d.userIDs[addr]; ok {
		return id, false, nil
	}

	id, err := d.register(addr)
	if err != nil {
		return 0, false, err
	}

	return id, true, nil
}

// Register assigns a new user ID to the given address, failing if the
// address is already known.
func (d *Directory) Register(addr Address) (uint64, error) {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	if _, ok := d.userIDs[addr]; ok {
		return 0, ErrAlreadyRegistered
	}

	return d.register(addr)
}

// register assigns the next free ID.
//
// NOTE: The lock MUST be held when calling this method.
func (d *Directory) register(addr Address) (uint64, error) {
	if d.numUsers == math.MaxUint64 {
		return 0, ErrUserSpaceExhausted
	}

	id := d.numUsers
	d.numUsers++
	d.userIDs[addr] = id
	d.addrs[id] = addr

	log.Debugf("Registered user %d for address %v", id, addr)

	return id, nil
}

// Resolve returns the address a user ID was assigned to.
func (d *Directory) Resolve(id uint64) (Address, error) {
	d.mtx.RLock()
	defer d.mtx.RUnlock()

	addr, ok := d.addrs[id]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownUser, id)
	}

	return addr, nil
}

// UserID returns the ID assigned to the address, if any.
func (d *Directory) UserID(addr Address) (uint64, bool) {
	d.mtx.RLock()
	defer d.mtx.RUnlock()

	id, ok := d.userIDs[addr]
	return id, ok
}

// NumUsers returns the number of registered users.
func (d *Directory) NumUsers() uint64 {
	d.mtx.RLock()
	defer d.mtx.RUnlock()

	return d.numUsers
}

// Snapshot returns a copy of the ID to address map, the form the directory
// is persisted in.
func (d *Directory) Snapshot() map[uint64]Address {
	d.mtx.RLock()
	defer d.mtx.RUnlock()

	addrs := make(map[uint64]Address, len(d.addrs))
	for id, addr := range d.addrs {
		addrs[id] = addr
	}
	return addrs
}
