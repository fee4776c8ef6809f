package cli

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gclaussn/bpmn-sol/analysis"
	"github.com/gclaussn/bpmn-sol/compiler"
	"github.com/gclaussn/bpmn-sol/model"
	"github.com/gclaussn/bpmn-sol/store"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newGenerateCmd(cli *Cli) *cobra.Command {
	var (
		diagramPath  string
		contractName string
		addresses    []string
		configPath   string
		outDir       string
		databaseUrl  string
		skipAnalysis bool
		watch        bool
	)

	c := cobra.Command{
		Use:   "generate",
		Short: "Generate a Solidity contract from a BPMN collaboration diagram",
		Long: `Generate a Solidity contract from a BPMN collaboration diagram.

Inputs not provided via flags or a YAML descriptor are collected interactively:
the diagram file path, the contract name and one Ethereum address per pool, in
document order.`,
		RunE: func(c *cobra.Command, _ []string) error {
			providedAddresses := make(map[string]string)
			for _, address := range addresses {
				name, value, ok := splitPair(address)
				if !ok {
					return fmt.Errorf("invalid address %q, expected <participant>=<address>", address)
				}
				providedAddresses[name] = value
			}

			if configPath != "" {
				descriptor, err := readDescriptor(configPath)
				if err != nil {
					return err
				}
				if diagramPath == "" {
					diagramPath = descriptor.Diagram
				}
				if contractName == "" {
					contractName = descriptor.ContractName
				}
				for _, participant := range descriptor.Participants {
					if _, ok := providedAddresses[participant.Name]; !ok {
						providedAddresses[participant.Name] = participant.Address
					}
				}
			}

			stdin := bufio.NewReader(cli.stdin)

			if diagramPath == "" {
				value, err := prompt(cli, stdin, "Enter the BPMN file path: ")
				if err != nil {
					return err
				}
				diagramPath = value
			}
			if contractName == "" {
				value, err := prompt(cli, stdin, "Enter the smart contract name: ")
				if err != nil {
					return err
				}
				contractName = value
			}

			m, err := readModel(diagramPath)
			if err != nil {
				return err
			}

			input := compiler.Input{ContractName: contractName}
			for _, participant := range m.Definitions.Participants {
				name := participant.NameOrId()

				address, ok := providedAddresses[name]
				if !ok {
					value, err := prompt(cli, stdin, fmt.Sprintf("Enter Ethereum address for '%s': ", name))
					if err != nil {
						return err
					}
					address = value
					providedAddresses[name] = address
				}

				input.Participants = append(input.Participants, compiler.ParticipantAddress{Name: name, Address: address})
			}

			options := generateOptions{
				outDir:       outDir,
				databaseUrl:  databaseUrl,
				skipAnalysis: skipAnalysis,
			}

			if err := cli.generate(diagramPath, input, options); err != nil {
				return err
			}

			if !watch {
				return nil
			}

			return cli.watchDiagram(diagramPath, providedAddresses, contractName, options)
		},
	}

	c.Flags().StringVar(&diagramPath, "file", "", "BPMN file path")
	c.Flags().StringVar(&contractName, "name", "", "Smart contract name")
	c.Flags().StringArrayVar(&addresses, "address", nil, "Participant address as <participant>=<address>")
	c.Flags().StringVar(&configPath, "config", "", "YAML descriptor with diagram, contract name and participant addresses")
	c.Flags().StringVar(&outDir, "out-dir", ".", "Output directory for the contract and the security report")
	c.Flags().StringVar(&databaseUrl, "database-url", "", "Postgres URL for recording compilation runs")
	c.Flags().BoolVar(&skipAnalysis, "skip-analysis", false, "Skip the static-analysis pass")
	c.Flags().BoolVar(&watch, "watch", false, "Regenerate the contract whenever the diagram file changes")

	c.Flags().SetAnnotation("database-url", envLookupAllowed, nil)

	return &c
}

type generateOptions struct {
	outDir       string
	databaseUrl  string
	skipAnalysis bool
}

func (c *Cli) generate(diagramPath string, input compiler.Input, options generateOptions) error {
	m, err := readModel(diagramPath)
	if err != nil {
		return err
	}

	artifact, err := compiler.Compile(m, input)
	if err != nil {
		return err
	}

	for _, warning := range artifact.Warnings {
		fmt.Fprintf(c.stderr, "warning: %s\n", warning)
	}

	filePath, err := artifact.WriteFile(options.outDir)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.stdout, "Smart contract generated: %s\n", filePath)

	var result analysis.Result
	if !options.skipAnalysis {
		result = analysis.Analyze(context.Background(), filePath, func(o *analysis.Options) {
			o.Stdout = c.stdout
			o.Stderr = c.stderr
		})

		reportPath, err := analysis.WriteReport(result, options.outDir)
		if err != nil {
			fmt.Fprintf(c.stderr, "warning: %v\n", err)
		} else {
			fmt.Fprintf(c.stdout, "Detailed security report generated: %s\n", reportPath)
		}
	}

	if options.databaseUrl != "" {
		c.recordCompilation(diagramPath, artifact, result, options.databaseUrl)
	}

	return nil
}

// recordCompilation inserts the run into the compilation history.
// Store failures must not fail a completed compilation.
func (c *Cli) recordCompilation(diagramPath string, artifact *compiler.Artifact, result analysis.Result, databaseUrl string) {
	s, err := store.New(databaseUrl)
	if err != nil {
		fmt.Fprintf(c.stderr, "warning: failed to open compilation store: %v\n", err)
		return
	}

	defer s.Shutdown()

	artifactSha256 := sha256.Sum256([]byte(artifact.Source))

	compilation := store.Compilation{
		ContractName:        artifact.ContractName,
		DiagramPath:         diagramPath,
		ArtifactSha256:      hex.EncodeToString(artifactSha256[:]),
		SlitherFindingCount: len(result.SlitherFindings),
		CustomFindingCount:  len(result.CustomFindings),
		HasErrors:           result.HasErrors,
		CreatedAt:           time.Now(),
	}

	if err := s.Insert(context.Background(), &compilation); err != nil {
		fmt.Fprintf(c.stderr, "warning: failed to record compilation: %v\n", err)
	}
}

func (c *Cli) watchDiagram(diagramPath string, providedAddresses map[string]string, contractName string, options generateOptions) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %v", err)
	}

	defer watcher.Close()

	// the parent directory is watched, since editors replace files on save
	if err := watcher.Add(filepath.Dir(diagramPath)); err != nil {
		return fmt.Errorf("failed to watch %s: %v", diagramPath, err)
	}

	fmt.Fprintf(c.stdout, "Watching %s for changes\n", diagramPath)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(diagramPath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			m, err := readModel(diagramPath)
			if err != nil {
				fmt.Fprintf(c.stderr, "warning: %v\n", err)
				continue
			}

			input := compiler.Input{ContractName: contractName}

			var missing bool
			for _, participant := range m.Definitions.Participants {
				name := participant.NameOrId()

				address, ok := providedAddresses[name]
				if !ok {
					fmt.Fprintf(c.stderr, "warning: no address known for participant %q, skipping regeneration\n", name)
					missing = true
					break
				}

				input.Participants = append(input.Participants, compiler.ParticipantAddress{Name: name, Address: address})
			}
			if missing {
				continue
			}

			if err := c.generate(diagramPath, input, options); err != nil {
				fmt.Fprintf(c.stderr, "warning: %v\n", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(c.stderr, "warning: watcher error: %v\n", err)
		}
	}
}

type descriptor struct {
	Diagram      string `yaml:"diagram"`
	ContractName string `yaml:"contractName"`
	Participants []struct {
		Name    string `yaml:"name"`
		Address string `yaml:"address"`
	} `yaml:"participants"`
}

func readDescriptor(configPath string) (*descriptor, error) {
	b, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor %s: %v", configPath, err)
	}

	var d descriptor
	if err := yaml.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal descriptor %s: %v", configPath, err)
	}

	return &d, nil
}

func readModel(diagramPath string) (*model.Model, error) {
	bpmnFile, err := os.Open(diagramPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open BPMN file %s: %v", diagramPath, err)
	}

	defer bpmnFile.Close()

	m, err := model.New(bpmnFile)
	if err != nil {
		return nil, fmt.Errorf("failed to parse BPMN XML: %v", err)
	}

	return m, nil
}
