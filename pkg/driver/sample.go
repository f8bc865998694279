package driver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cloudkeep/poolkeeper/pkg/types"
)

// HTTPDriver is a reference Driver implementation exercising the registry
// contract against a pretend external provisioning endpoint: init issues a
// boot request and polls a status URL until healthy or timeout; stop and
// wipe issue their own teardown/reset requests; check performs a plain GET
// health probe. It requires no real cloud backend, the same role the
// teacher lineage's HTTP/TCP/exec health checkers play for container health.
type HTTPDriver struct {
	Class        string
	BaseURL      string
	Client       *http.Client
	BootTimeout  time.Duration
	PollInterval time.Duration
}

// NewHTTPDriver returns an HTTPDriver targeting baseURL, with sane defaults
// for timeouts and poll interval.
func NewHTTPDriver(class, baseURL string) *HTTPDriver {
	return &HTTPDriver{
		Class:        class,
		BaseURL:      baseURL,
		Client:       &http.Client{Timeout: 10 * time.Second},
		BootTimeout:  2 * time.Minute,
		PollInterval: 2 * time.Second,
	}
}

func (d *HTTPDriver) url(resource *types.Resource, path string) string {
	instanceID, _ := resource.Data["instance_id"].(string)
	return fmt.Sprintf("%s/%s/%s", d.BaseURL, instanceID, path)
}

func (d *HTTPDriver) post(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned %s", url, resp.Status)
	}
	return nil
}

// Init boots resource and polls its status URL until healthy or
// BootTimeout elapses.
func (d *HTTPDriver) Init(resource *types.Resource) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.BootTimeout)
	defer cancel()

	if err := d.post(ctx, d.url(resource, "boot")); err != nil {
		return fmt.Errorf("boot failed: %w", err)
	}

	ticker := time.NewTicker(d.PollInterval)
	defer ticker.Stop()
	for {
		if err := d.Check(resource); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for resource to boot: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// Stop issues a teardown request. Idempotent: a 404 from an
// already-stopped instance is not an error.
func (d *HTTPDriver) Stop(resource *types.Resource) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url(resource, "teardown"), nil)
	if err != nil {
		return err
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return fmt.Errorf("teardown request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("teardown returned %s", resp.Status)
	}
	return nil
}

// Wipe re-issues the pristine-state request.
func (d *HTTPDriver) Wipe(resource *types.Resource) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := d.post(ctx, d.url(resource, "reset")); err != nil {
		return fmt.Errorf("wipe failed: %w", err)
	}
	return nil
}

// Check performs a GET health probe.
func (d *HTTPDriver) Check(resource *types.Resource) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url(resource, "health"), nil)
	if err != nil {
		return err
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return fmt.Errorf("health probe failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health probe returned %s", resp.Status)
	}
	return nil
}

// Validate checks that address, if the caller supplied one, is a string;
// every field is optional and passed through to Data.
func (d *HTTPDriver) Validate(values map[string]interface{}) error {
	if values == nil {
		return nil
	}
	if _, ok := values["address"]; ok {
		if _, ok := values["address"].(string); !ok {
			return fmt.Errorf("address must be a string")
		}
	}
	return nil
}

// Schema describes the fields this driver accepts.
func (d *HTTPDriver) Schema() types.Schema {
	return types.Schema{
		Class: d.Class,
		Fields: []types.SchemaField{
			{Name: "address", Type: "string", Required: false, Description: "pre-assigned network address, if any"},
			{Name: "instance_id", Type: "string", Required: false, Description: "pre-assigned backend instance id, if any"},
		},
	}
}

// Prepare passes through any client-supplied fields (the add path), adds
// the driver's class, and synthesizes an instance id whenever none was
// supplied — always on the auto-provisioning path, where values is nil.
func (d *HTTPDriver) Prepare(state types.Status, values map[string]interface{}) (map[string]interface{}, error) {
	data := map[string]interface{}{"class": d.Class}
	for k, v := range values {
		data[k] = v
	}
	if _, ok := data["instance_id"]; !ok {
		data["instance_id"] = fmt.Sprintf("sample-%d", time.Now().UnixNano())
	}
	return data, nil
}
