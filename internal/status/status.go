// Package status reports host and knowledge-base health for the /status
// command.
package status

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/bowerhall/recall/internal/store"
)

type Report struct {
	Hostname    string
	Uptime      time.Duration
	CPUPercent  float64
	MemPercent  float64
	DiskPercent float64
	Stats       *store.Stats
}

var startedAt = time.Now()

// Collect gathers host metrics and store counts. Individual metric failures
// leave a zero value rather than failing the report.
func Collect(s *store.Store) *Report {
	r := &Report{Uptime: time.Since(startedAt).Round(time.Second)}

	r.Hostname, _ = os.Hostname()

	if percents, err := cpu.Percent(time.Second, false); err == nil && len(percents) > 0 {
		r.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		r.MemPercent = vm.UsedPercent
	}
	if du, err := disk.Usage("/"); err == nil {
		r.DiskPercent = du.UsedPercent
	}

	if stats, err := s.Stats(); err == nil {
		r.Stats = stats
	}

	return r
}

func (r *Report) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "host: %s (up %s)\n", r.Hostname, r.Uptime)
	fmt.Fprintf(&b, "cpu: %.1f%%  mem: %.1f%%  disk: %.1f%%\n", r.CPUPercent, r.MemPercent, r.DiskPercent)

	if r.Stats != nil {
		fmt.Fprintf(&b, "conversations: %d  messages: %d  memories: %d\n",
			r.Stats.Conversations, r.Stats.Messages, r.Stats.Memories)
		fmt.Fprintf(&b, "entities: %d  facts: %d  edges: %d  summaries: %d",
			r.Stats.Entities, r.Stats.Facts, r.Stats.Edges, r.Stats.Summaries)
	}

	return b.String()
}
