package pipeline

import "github.com/bowerhall/recall/internal/store"

// Notifier receives fire-and-forget pipeline events. Implementations must
// not block; the pipeline never waits on a consumer.
type Notifier interface {
	NewMessages(sessionID string, count int)
	NewMemory(memory *store.Memory)
	NewEntity(entity *store.Entity)
	SummaryGenerated(sessionID string)
	ReprocessProgress(phase string, processed, total int)
	MasterMemoryProgress(current, total int)
}

type NopNotifier struct{}

func (NopNotifier) NewMessages(string, int)            {}
func (NopNotifier) NewMemory(*store.Memory)            {}
func (NopNotifier) NewEntity(*store.Entity)            {}
func (NopNotifier) SummaryGenerated(string)            {}
func (NopNotifier) ReprocessProgress(string, int, int) {}
func (NopNotifier) MasterMemoryProgress(int, int)      {}

// MultiNotifier fans events out to several consumers.
type MultiNotifier []Notifier

func (m MultiNotifier) NewMessages(sessionID string, count int) {
	for _, n := range m {
		n.NewMessages(sessionID, count)
	}
}

func (m MultiNotifier) NewMemory(memory *store.Memory) {
	for _, n := range m {
		n.NewMemory(memory)
	}
}

func (m MultiNotifier) NewEntity(entity *store.Entity) {
	for _, n := range m {
		n.NewEntity(entity)
	}
}

func (m MultiNotifier) SummaryGenerated(sessionID string) {
	for _, n := range m {
		n.SummaryGenerated(sessionID)
	}
}

func (m MultiNotifier) ReprocessProgress(phase string, processed, total int) {
	for _, n := range m {
		n.ReprocessProgress(phase, processed, total)
	}
}

func (m MultiNotifier) MasterMemoryProgress(current, total int) {
	for _, n := range m {
		n.MasterMemoryProgress(current, total)
	}
}
