package commands

import (
	"errors"
	"strings"

	"github.com/marmos91/rpcboot/internal/cli/output"
	"github.com/marmos91/rpcboot/pkg/binder"
	"github.com/marmos91/rpcboot/pkg/discovery"
	"github.com/marmos91/rpcboot/pkg/lifecycle"
	"github.com/marmos91/rpcboot/pkg/rpc"
	"github.com/spf13/cobra"
)

var (
	discoverScope       string
	discoverPerContract bool
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Show what auto-configuration would wire",
	Long: `List the declarations of the greeter catalog and the bindings the RPC
auto-configuration would produce for a scope, without starting anything.

Examples:
  # Inspect the application scope
  rpcboot discover

  # Only the implementation package, as JSON
  rpcboot discover --scope github.com/marmos91/rpcboot/internal/greeter/polite -o json`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().StringVar(&discoverScope, "scope", "", "Scope to inspect (default: the application scope)")
	discoverCmd.Flags().BoolVar(&discoverPerContract, "per-contract", false, "Only treat two implementations of the same contract as ambiguous")
}

// DeclInfo describes one catalog declaration.
type DeclInfo struct {
	Name         string   `json:"name" yaml:"name"`
	Kind         string   `json:"kind" yaml:"kind"`
	Capabilities []string `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
}

// BindingInfo describes one processor bound to its implementation.
type BindingInfo struct {
	Contract       string `json:"contract" yaml:"contract"`
	Handler        string `json:"handler" yaml:"handler"`
	Processor      string `json:"processor" yaml:"processor"`
	Implementation string `json:"implementation" yaml:"implementation"`
}

// DiscoveryReport is the result of the discover command.
type DiscoveryReport struct {
	Scope     string        `json:"scope" yaml:"scope"`
	Ambiguity string        `json:"ambiguity" yaml:"ambiguity"`
	Decls     []DeclInfo    `json:"declarations" yaml:"declarations"`
	Bindings  []BindingInfo `json:"bindings" yaml:"bindings"`
	BindError string        `json:"bind_error,omitempty" yaml:"bind_error,omitempty"`
}

func runDiscover(cmd *cobra.Command, args []string) error {
	printer, err := newPrinter(cmd)
	if err != nil {
		return err
	}

	application := sampleApplication(GetAppName(cmd))
	scope := discoverScope
	if scope == "" {
		scope = application.Scope()
	}
	ambiguity := binder.WholeScope
	if discoverPerContract {
		ambiguity = binder.PerContract
	}

	report := inspect(application.Catalog(), scope, ambiguity)
	if printer.Format() != output.FormatTable {
		return printer.Print(report)
	}

	decls := output.NewTableData("DECLARATION", "KIND", "CAPABILITIES")
	for _, d := range report.Decls {
		decls.AddRow(d.Name, d.Kind, strings.Join(d.Capabilities, ", "))
	}
	if err := output.PrintTable(cmd.OutOrStdout(), decls); err != nil {
		return err
	}
	printer.Printf("\n")

	switch {
	case report.BindError != "":
		printer.Warning("No RPC server would be registered: " + report.BindError)
		return nil
	case len(report.Bindings) == 0:
		printer.Warning("No RPC processor declared in " + scope)
		return nil
	}

	bindings := output.NewTableData("CONTRACT", "HANDLER", "PROCESSOR", "IMPLEMENTATION")
	for _, b := range report.Bindings {
		bindings.AddRow(b.Contract, b.Handler, b.Processor, b.Implementation)
	}
	return output.PrintTable(cmd.OutOrStdout(), bindings)
}

// inspect lists the declarations within scope and runs the binder over it.
func inspect(cat *discovery.Catalog, scope string, ambiguity binder.Ambiguity) DiscoveryReport {
	report := DiscoveryReport{Scope: scope, Ambiguity: ambiguity.String()}

	processor := discovery.CapabilityOf[rpc.Processor]()
	unit := discovery.CapabilityOf[lifecycle.Unit]()
	for _, d := range cat.Decls() {
		if !discovery.InScope(d.Scope(), scope) {
			continue
		}
		info := DeclInfo{Name: d.QualifiedName(), Kind: kindOf(d)}
		if d.Implements(processor) {
			info.Capabilities = append(info.Capabilities, "rpc processor")
		}
		if d.Implements(unit) {
			info.Capabilities = append(info.Capabilities, "lifecycle unit")
		}
		report.Decls = append(report.Decls, info)
	}

	bindings, err := binder.New(cat, processor, binder.WithAmbiguity(ambiguity)).Bind(scope)
	switch {
	case errors.Is(err, binder.ErrNoCandidates):
	case err != nil:
		report.BindError = err.Error()
	}
	for _, b := range bindings {
		report.Bindings = append(report.Bindings, BindingInfo{
			Contract:       b.Handler.Enclosing().QualifiedName(),
			Handler:        b.Handler.Name(),
			Processor:      b.Wrapper.Name(),
			Implementation: b.Implementation.QualifiedName(),
		})
	}
	return report
}

func kindOf(d *discovery.Decl) string {
	switch {
	case d.Type() == nil:
		return "namespace"
	case d.Abstract():
		return "interface"
	default:
		return "type"
	}
}
