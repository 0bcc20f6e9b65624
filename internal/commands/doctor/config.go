package doctor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/hay-kot/criterio"

	"github.com/hay-kot/mqview/internal/core/config"
)

// ConfigCheck reports on the config file, the bridge listen address and the
// configured brokers, followed by any validation errors and warnings.
type ConfigCheck struct {
	config     *config.Config
	configPath string
}

// NewConfigCheck creates a new configuration check.
func NewConfigCheck(cfg *config.Config, configPath string) *ConfigCheck {
	return &ConfigCheck{
		config:     cfg,
		configPath: configPath,
	}
}

func (c *ConfigCheck) Name() string {
	return "Configuration"
}

func (c *ConfigCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	if c.config == nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "Config loaded",
			Status: StatusFail,
			Detail: "configuration not loaded",
		})
		return result
	}

	result.Items = append(result.Items,
		c.fileItem(),
		listenItem(c.config.Server.Listen),
		brokersItem(len(c.config.Brokers)),
	)

	if err := c.config.ValidateDeep(c.configPath); err != nil {
		var fieldErrs criterio.FieldErrors
		if !errors.As(err, &fieldErrs) {
			fieldErrs = criterio.FieldErrors{{Err: err}}
		}
		for _, fe := range fieldErrs {
			label := fe.Field
			if label == "" {
				label = "validation"
			}
			result.Items = append(result.Items, CheckItem{Label: label, Status: StatusFail, Detail: fe.Err.Error()})
		}
	}

	for _, w := range c.config.Warnings() {
		label := w.Category
		if w.Item != "" {
			label += " (" + w.Item + ")"
		}
		result.Items = append(result.Items, CheckItem{Label: label, Status: StatusWarn, Detail: w.Message})
	}

	return result
}

func (c *ConfigCheck) fileItem() CheckItem {
	item := CheckItem{Label: "Config file", Status: StatusPass, Detail: c.configPath}
	if c.configPath == "" {
		item.Detail = "none, using defaults"
		return item
	}
	if _, err := os.Stat(c.configPath); os.IsNotExist(err) {
		item.Detail = c.configPath + " not found, using defaults"
	}
	return item
}

func listenItem(addr string) CheckItem {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return CheckItem{Label: "Listen address", Status: StatusFail, Detail: err.Error()}
	}
	return CheckItem{Label: "Listen address", Status: StatusPass, Detail: addr}
}

func brokersItem(n int) CheckItem {
	if n == 0 {
		return CheckItem{Label: "Configured brokers", Status: StatusPass, Detail: "none, relying on remembered brokers"}
	}
	return CheckItem{Label: "Configured brokers", Status: StatusPass, Detail: fmt.Sprintf("%d configured", n)}
}
