package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/faasbench/faasbench/benchmark"
	"github.com/faasbench/faasbench/storage"
)

// Function is a deployed serverless function handle.
type Function struct {
	Name string
	// TriggerURL is the HTTP endpoint that synchronously invokes the function.
	TriggerURL string
}

type InvocationResult struct {
	DurationSec float64
	Output      map[string]any
}

// Client is the capability contract the experiment pipeline requires from a
// cloud provider. Provider-specific deployment mechanics stay behind it.
type Client interface {
	Name() string

	// GetStorage returns a backend for the benchmark with bucketCount buckets
	// allocated across input and output roles. With exclusive set, previously
	// existing input buckets are cleaned before reuse.
	GetStorage(ctx context.Context, benchmarkName string, bucketCount int, exclusive bool) (storage.Backend, error)

	// Deploy publishes the code package under the function name.
	Deploy(ctx context.Context, pkg *benchmark.CodePackage, name string) (*Function, error)

	// Invoke runs the function synchronously with the payload.
	Invoke(ctx context.Context, fn *Function, payload map[string]any) (*InvocationResult, error)
}

// UnsupportedProviderError is returned at client construction for providers
// that are declared but not implemented, so the pipeline can fail fast
// instead of proceeding with a nil client.
type UnsupportedProviderError struct {
	Provider string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("deployment %q is not supported", e.Provider)
}

type Factory func(ctx context.Context, config map[string]any) (Client, error)

var providers map[string]Factory

// Providers must register themselves at module load time so NewClient can
// construct them by name.
func RegisterProvider(name string, f Factory) {
	if providers == nil {
		providers = map[string]Factory{}
	}
	providers[name] = f
}

// NewClient constructs the provider client by name. Unknown providers fail
// with UnsupportedProviderError.
func NewClient(ctx context.Context, name string, config map[string]any) (Client, error) {
	f, ok := providers[name]
	if !ok {
		return nil, &UnsupportedProviderError{Provider: name}
	}
	return f(ctx, config)
}

func init() {
	// declared on the command surface, deployment mechanics not implemented yet
	RegisterProvider("azure", func(ctx context.Context, config map[string]any) (Client, error) {
		return nil, &UnsupportedProviderError{Provider: "azure"}
	})
}

// invokeHTTP drives a function through its synchronous HTTP trigger and
// reports the observed wall time.
func invokeHTTP(ctx context.Context, client *http.Client, fn *Function, payload map[string]any) (*InvocationResult, error) {
	if fn.TriggerURL == "" {
		return nil, fmt.Errorf("function %s has no trigger configured", fn.Name)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fn.TriggerURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("invoking function %s failed: %w", fn.Name, err)
	}
	defer resp.Body.Close()
	elapsed := time.Since(start)

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response of function %s failed: %w", fn.Name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("function %s returned status %d: %s", fn.Name, resp.StatusCode, string(buf))
	}

	output := map[string]any{}
	if len(buf) > 0 {
		if err := json.Unmarshal(buf, &output); err != nil {
			return nil, fmt.Errorf("unmarshalling response of function %s failed: %w", fn.Name, err)
		}
	}
	return &InvocationResult{DurationSec: elapsed.Seconds(), Output: output}, nil
}
