package doctor

import (
	"context"
	"fmt"

	"github.com/hay-kot/mqview/internal/core/config"
	"github.com/hay-kot/mqview/internal/store/jsonfile"
)

// StoreCheck verifies the bridge data files can be read.
type StoreCheck struct {
	config *config.Config
}

// NewStoreCheck creates a new data directory check.
func NewStoreCheck(cfg *config.Config) *StoreCheck {
	return &StoreCheck{config: cfg}
}

func (c *StoreCheck) Name() string {
	return "Data Directory"
}

func (c *StoreCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	if c.config == nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "Config loaded",
			Status: StatusFail,
			Detail: "configuration not loaded",
		})
		return result
	}

	hosts, err := jsonfile.NewBrokerStore(c.config.BrokersFile()).List(ctx)
	result.Items = append(result.Items, countItem("Known brokers", len(hosts), err))

	commands, err := jsonfile.NewCommandStore(c.config.CommandsDir()).List(ctx)
	result.Items = append(result.Items, countItem("Saved commands", len(commands), err))

	pipelines, err := jsonfile.NewPipelineStore(c.config.PipelinesDir()).List(ctx)
	result.Items = append(result.Items, countItem("Saved pipelines", len(pipelines), err))

	return result
}

func countItem(label string, n int, err error) CheckItem {
	if err != nil {
		return CheckItem{Label: label, Status: StatusFail, Detail: err.Error()}
	}
	return CheckItem{Label: label, Status: StatusPass, Detail: fmt.Sprintf("%d found", n)}
}
