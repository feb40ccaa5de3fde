package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"castscribe/internal/api"
	"castscribe/internal/config"
)

type globalFlags struct {
	config   string
	server   string
	logLevel string
	json     bool
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.flags != nil && c.flags.json
}

func (c *commandContext) logLevel() string {
	if c.flags == nil {
		return ""
	}
	return strings.TrimSpace(c.flags.logLevel)
}

// client returns an API client for the configured daemon.
func (c *commandContext) client() (*api.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(c.flags.server)
	if baseURL == "" {
		baseURL = cfg.APIBaseURL()
	}
	return api.NewClient(baseURL, cfg.Paths.APIToken), nil
}

func (c *commandContext) withClient(fn func(*api.Client) error) error {
	client, err := c.client()
	if err != nil {
		return err
	}
	if err := fn(client); err != nil {
		return wrapClientError(err, client.BaseURL())
	}
	return nil
}

func wrapClientError(err error, baseURL string) error {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return errors.New(apiErr.Message)
	}
	if strings.Contains(err.Error(), "connect to daemon") {
		return fmt.Errorf("%w; start the daemon with `castscribe daemon` (api %s)", err, baseURL)
	}
	return err
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func valueOrDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
