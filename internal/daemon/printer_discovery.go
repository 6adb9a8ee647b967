package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/adcondev/brother-daemon/internal/brother"
)

// Descriptor fields worth showing in the startup log, when the SDK sends them.
var descriptorLabels = []string{"modelName", "ipAddress", "macAddress", "serialNumber", "port"}

// PrinterDiscovery runs a discovery pass through the facade for diagnostics.
// Results are logged, never cached.
type PrinterDiscovery struct {
	printer *brother.Client
	timeout time.Duration
}

// NewPrinterDiscovery creates a discovery helper bounded by timeout per pass
func NewPrinterDiscovery(printer *brother.Client, timeout time.Duration) *PrinterDiscovery {
	return &PrinterDiscovery{
		printer: printer,
		timeout: timeout,
	}
}

// Discover calls findPrinters and returns the printers the SDK reported.
func (pd *PrinterDiscovery) Discover(ctx context.Context) ([]any, error) {
	if pd.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, pd.timeout)
		defer cancel()
	}

	result, err := brother.Await(ctx, pd.printer.FindPrinters)
	if err != nil {
		return nil, err
	}

	switch v := result.(type) {
	case nil:
		return nil, nil
	case []any:
		return v, nil
	default:
		return []any{v}, nil
	}
}

// LogStartupDiagnostics logs printer info at service start
func (pd *PrinterDiscovery) LogStartupDiagnostics(ctx context.Context) {
	printers, err := pd.Discover(ctx)
	if err != nil {
		var be *brother.Error
		if errors.As(err, &be) {
			log.Printf("[PRINTERS] ⚠️ Discovery failed: %s", be.Details())
		} else {
			log.Printf("[PRINTERS] ⚠️ Discovery failed: %v", err)
		}
		return
	}

	log.Println("[PRINTERS] ══════════════════════════════════════════════════")
	log.Printf("[PRINTERS] 🖨️ SDK reports %d printer(s)", len(printers))
	if len(printers) == 0 {
		log.Println("[PRINTERS] ⚠️ No Brother printers found on any transport!")
	}
	for _, p := range printers {
		log.Printf("[PRINTERS]    • %s", describePrinter(p))
	}
	log.Println("[PRINTERS] ══════════════════════════════════════════════════")
}

// describePrinter renders a descriptor for humans without assuming its shape.
func describePrinter(p any) string {
	m, ok := p.(map[string]any)
	if !ok {
		return fmt.Sprint(p)
	}

	var parts []string
	for _, key := range descriptorLabels {
		if v, ok := m[key]; ok && v != nil && v != "" {
			parts = append(parts, fmt.Sprintf("%s=%v", key, v))
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%v", m)
	}
	return strings.Join(parts, " ")
}
