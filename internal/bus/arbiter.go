// Package bus implements the single data-bus arbiter all device transfers
// serialize on.
package bus

import "github.com/ehrlich-b/go-simsched/internal/device"

// Arbiter owns the data bus. At most one transfer is in flight at a time;
// Busy is true exactly while some device has InUse set.
type Arbiter struct {
	Busy     bool
	OwnerPid int
}

// Select picks the next transfer to start, without granting it. Among
// devices with queued requests it chooses the one with the largest read
// speed, breaking ties by the smallest enqueue time across the device's
// queue, then by position in the devices slice. The read-speed key applies
// to write requests too; only the transfer duration uses the write speed.
//
// The winning device's oldest request is returned alongside it. ok is false
// when the bus is busy or no device has pending work.
func (a *Arbiter) Select(devices []*device.Device) (d *device.Device, r device.Request, ok bool) {
	if a.Busy {
		return nil, device.Request{}, false
	}
	var best *device.Device
	var bestOldest int64
	for _, cand := range devices {
		oldest, pending := cand.OldestEnqueue()
		if !pending {
			continue
		}
		if best == nil ||
			cand.ReadSpeed > best.ReadSpeed ||
			(cand.ReadSpeed == best.ReadSpeed && oldest < bestOldest) {
			best = cand
			bestOldest = oldest
		}
	}
	if best == nil {
		return nil, device.Request{}, false
	}
	req, _ := best.PopOldest()
	return best, req, true
}

// Grant marks the bus busy with the given device and owner.
func (a *Arbiter) Grant(d *device.Device, ownerPid int) {
	d.InUse = true
	a.Busy = true
	a.OwnerPid = ownerPid
}

// Release frees the device and the bus after a completed transfer.
func (a *Arbiter) Release(d *device.Device) {
	d.InUse = false
	a.Busy = false
	a.OwnerPid = 0
}
