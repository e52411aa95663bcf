package fake

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/integrations/courier"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/models"
)

var stages = []string{"Booked", "Picked Up", "In Transit", "Out For Delivery", "Delivered"}

var vocabulary = courier.Vocabulary{
	Delivered:      []string{"DELIVERED"},
	OutForDelivery: []string{"OUT FOR DELIVERY"},
}

var hubs = []string{"Mumbai", "Pune", "Delhi", "Bengaluru", "Hyderabad", "Chennai"}

// FakeClient is a demo courier. Each awb walks through the stages, one per
// step, counted from the first time it was fetched. Awbs starting with "0"
// are unknown to the courier.
type FakeClient struct {
	step time.Duration
	now  func() time.Time

	mu    sync.Mutex
	first map[string]time.Time
}

func New(step time.Duration) *FakeClient {
	if step <= 0 {
		step = 15 * time.Minute
	}
	return &FakeClient{
		step:  step,
		now:   func() time.Time { return time.Now().UTC() },
		first: make(map[string]time.Time),
	}
}

func (f *FakeClient) Fetch(ctx context.Context, awb string) (courier.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return courier.Snapshot{}, courier.NewAdapterError(models.CourierFake, awb, err)
	}
	if strings.HasPrefix(awb, "0") {
		return courier.Snapshot{}, nil
	}

	now := f.now()
	f.mu.Lock()
	start, ok := f.first[awb]
	if !ok {
		start = now
		f.first[awb] = start
	}
	f.mu.Unlock()

	stage := int(now.Sub(start) / f.step)
	if stage >= len(stages) {
		stage = len(stages) - 1
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(awb))
	v := int(h.Sum32() % uint32(len(hubs)))

	scans := make([]models.ScanEvent, 0, stage+1)
	for i := 0; i <= stage; i++ {
		scans = append(scans, models.ScanEvent{
			Location:   hubs[(v+i)%len(hubs)],
			StatusText: stages[i],
			Timestamp:  start.Add(time.Duration(i) * f.step).Format("2006-01-02 15:04"),
		})
	}

	status := stages[stage]
	return courier.Snapshot{
		Scans:            scans,
		CurrentStatus:    strings.ToUpper(status),
		IsDelivered:      vocabulary.IsDelivered(status),
		IsOutForDelivery: vocabulary.IsOutForDelivery(status),
	}, nil
}
