package notify

import (
	"fmt"

	"github.com/lazypower/tabpulse/internal/model"
)

// Notification kinds.
const (
	KindLeak        = "leak"
	KindHighMemory  = "high_memory"
	KindTotalMemory = "total_memory"
	KindHibernated  = "hibernated"
)

// LeakDetected describes a leak using the newest sample in its window.
func LeakDetected(leak model.Leak) Notification {
	current := 0.0
	if n := len(leak.MemoryHistory); n > 0 {
		current = leak.MemoryHistory[n-1]
	}
	return Notification{
		Kind:     KindLeak,
		Title:    "⚠️ Memory Leak Detected",
		Message:  fmt.Sprintf("%q is consuming %.1f MB and growing.", leak.Title, current),
		Priority: PriorityHigh,
	}
}

func HighMemory(title string, memoryMB float64) Notification {
	return Notification{
		Kind:     KindHighMemory,
		Title:    "High Memory Usage Alert",
		Message:  fmt.Sprintf("%q is using %.1f MB of memory.", title, memoryMB),
		Priority: PriorityNormal,
	}
}

func TotalMemory(totalMB float64, tabCount int) Notification {
	return Notification{
		Kind:  KindTotalMemory,
		Title: "Total Browser Memory Usage High",
		Message: fmt.Sprintf("%d tabs are using a total of %.1f GB total memory. Consider closing some tabs.",
			tabCount, totalMB/1024),
		Priority: PriorityNormal,
	}
}

func Hibernated(count int, freedMB float64) Notification {
	return Notification{
		Kind:     KindHibernated,
		Title:    "Tabs Hibernated Successfully",
		Message:  fmt.Sprintf("%d tabs hibernated, freeing up %.1f MB of memory.", count, freedMB),
		Priority: PriorityLow,
	}
}
