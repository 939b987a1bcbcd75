// Package populate fills a store with demo channels for load and query
// experiments. The generated shapes mimic an accelerator naming scheme:
// per-cell device channels carrying host/ioc/status properties and
// power-of-ten group tags.
package populate

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/channelfinder/channelfinder-server/internal/domain"
	"github.com/channelfinder/channelfinder-server/internal/store"
)

const demoOwner = "admin"

var elementTypes = []string{"BPM", "Magnet", "RF", "Vacuum", "PS"}

// Populator writes demo documents straight into a store.
type Populator struct {
	Store  *store.Store
	Logger *slog.Logger
	Rand   *rand.Rand
}

// Create generates channelsPerCell channels for each of cells cells,
// together with the canonical tags and properties they reference.
func (p *Populator) Create(ctx context.Context, cells, channelsPerCell int) error {
	if err := p.createCanonicals(ctx, channelsPerCell); err != nil {
		return err
	}

	for cell := 1; cell <= cells; cell++ {
		chans := make([]*domain.Channel, 0, channelsPerCell)
		for i := 1; i <= channelsPerCell; i++ {
			chans = append(chans, p.channel(cell, i))
		}
		if err := p.Store.Channels.BulkPut(ctx, chans); err != nil {
			return fmt.Errorf("populate cell %d: %w", cell, err)
		}
		p.Logger.Info("Populated cell", "cell", cell, "channels", len(chans))
	}
	return nil
}

// createCanonicals writes the tag and property records the generated
// channels reference.
func (p *Populator) createCanonicals(ctx context.Context, channelsPerCell int) error {
	for _, name := range []string{"hostName", "iocName", "pvStatus", "cell", "elemType"} {
		prop := &domain.Property{Name: name, Owner: demoOwner}
		if err := p.Store.Properties.Put(ctx, name, prop); err != nil {
			return fmt.Errorf("populate property %s: %w", name, err)
		}
	}
	for _, name := range groupTags(channelsPerCell) {
		tag := &domain.Tag{Name: name, Owner: demoOwner}
		if err := p.Store.Tags.Put(ctx, name, tag); err != nil {
			return fmt.Errorf("populate tag %s: %w", name, err)
		}
	}
	return nil
}

// channel builds one demo channel. Every 10^n-th channel of a cell carries
// the matching group tag, so tag searches hit predictable member counts.
func (p *Populator) channel(cell, i int) *domain.Channel {
	elem := elementTypes[p.Rand.Intn(len(elementTypes))]
	host := fmt.Sprintf("host%02d", p.Rand.Intn(10))
	status := "active"
	if p.Rand.Intn(10) == 0 {
		status = "inactive"
	}

	ch := &domain.Channel{
		Name:  fmt.Sprintf("SR:C%03d:%s:%04d", cell, elem, i),
		Owner: demoOwner,
		Properties: []domain.PropertyInstance{
			{Name: "hostName", Owner: demoOwner, Value: host},
			{Name: "iocName", Owner: demoOwner, Value: "ioc-" + host},
			{Name: "pvStatus", Owner: demoOwner, Value: status},
			{Name: "cell", Owner: demoOwner, Value: fmt.Sprintf("%d", cell)},
			{Name: "elemType", Owner: demoOwner, Value: elem},
		},
	}
	for magnitude := 10; ; magnitude *= 10 {
		if i%magnitude != 0 {
			break
		}
		ch.Tags = append(ch.Tags, domain.TagRef{
			Name:  fmt.Sprintf("group_%d", magnitude),
			Owner: demoOwner,
		})
	}
	return ch
}

// groupTags lists the power-of-ten group tags reachable for the cell size.
func groupTags(channelsPerCell int) []string {
	var names []string
	for magnitude := 10; magnitude <= channelsPerCell; magnitude *= 10 {
		names = append(names, fmt.Sprintf("group_%d", magnitude))
	}
	return names
}
