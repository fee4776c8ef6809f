// Package analysis runs a static-analysis pass over an emitted contract file:
// slither as a child process, a set of custom regex checks and a consolidated
// security report. Analysis failures are non-fatal - they are recorded in the
// result and folded into the report.
package analysis

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

const (
	envWorkDir = "ANALYZER_WORKDIR"
	envRemap   = "ANALYZER_REMAP"

	defaultRemap = "@openzeppelin=node_modules/@openzeppelin"
)

func NewOptions() Options {
	workDir := os.Getenv(envWorkDir)
	if workDir == "" {
		workDir = "."
	}

	remap := os.Getenv(envRemap)
	if remap == "" {
		remap = defaultRemap
	}

	return Options{
		Analyzer: "slither",
		WorkDir:  workDir,
		Remap:    remap,
		Timeout:  120 * time.Second,

		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

type Options struct {
	Analyzer string        // Analyzer executable.
	WorkDir  string        // Working directory of the analyzer process.
	Remap    string        // Import remap, passed via --solc-remaps.
	Timeout  time.Duration // Bounded wait for the analyzer process.

	Stdout io.Writer
	Stderr io.Writer
}

// Result consolidates analyzer findings and custom check findings.
type Result struct {
	SlitherFindings []string
	CustomFindings  []string
	HasErrors       bool
	ExitCode        int
	Failures        []string // Non-fatal driver failures, recorded in place of findings.
}

// Analyze runs the external analyzer and the custom checks over the contract file.
// It never fails - any driver error is logged and recorded in the result.
func Analyze(ctx context.Context, filePath string, customizers ...func(*Options)) Result {
	options := NewOptions()
	for _, customizer := range customizers {
		customizer(&options)
	}

	var result Result

	if err := runAnalyzer(ctx, filePath, options, &result); err != nil {
		fmt.Fprintf(options.Stderr, "warning: slither analysis failed: %v\n", err)
		result.Failures = append(result.Failures, fmt.Sprintf("Error during Slither analysis: %v", err))
	} else {
		fmt.Fprintln(options.Stdout, "\n=== Analysis Result ===")
		switch {
		case result.HasErrors:
			fmt.Fprintln(options.Stdout, "Errors occurred during Slither analysis.")
		case result.ExitCode != 0 || len(result.SlitherFindings) != 0:
			fmt.Fprintln(options.Stdout, "Slither detected possible warnings. Check the report for details.")
		default:
			fmt.Fprintln(options.Stdout, "Slither did not detect critical vulnerabilities.")
		}
	}

	source, err := os.ReadFile(filePath)
	if err != nil {
		fmt.Fprintf(options.Stderr, "warning: custom security checks failed: %v\n", err)
		result.Failures = append(result.Failures, fmt.Sprintf("Error during custom security checks: %v", err))
		return result
	}

	result.CustomFindings = CustomChecks(string(source))

	if len(result.CustomFindings) != 0 {
		fmt.Fprintln(options.Stdout, "=== Detected Vulnerabilities (Custom Checks) ===")
		for _, finding := range result.CustomFindings {
			fmt.Fprintf(options.Stdout, "- %s\n", finding)
		}
	} else {
		fmt.Fprintln(options.Stdout, "No vulnerabilities detected with custom checks.")
	}

	return result
}

func runAnalyzer(ctx context.Context, filePath string, options Options, result *Result) error {
	workDirInfo, err := os.Stat(options.WorkDir)
	if err != nil || !workDirInfo.IsDir() {
		return fmt.Errorf("working directory %s does not exist or is not a directory", options.WorkDir)
	}

	if options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, options.Analyzer, filePath, "--solc-remaps", options.Remap)
	cmd.Dir = options.WorkDir

	// stderr is merged into stdout and consumed line by line
	pipeReader, pipeWriter := io.Pipe()
	cmd.Stdout = pipeWriter
	cmd.Stderr = pipeWriter

	fmt.Fprintln(options.Stdout, "Running Slither analysis...")
	fmt.Fprintf(options.Stdout, "Command: %s\n", strings.Join(cmd.Args, " "))

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start analyzer: %v", err)
	}

	waitDone := make(chan error, 1)
	go func() {
		waitDone <- cmd.Wait()
		pipeWriter.Close()
	}()

	fmt.Fprintln(options.Stdout, "\n=== Vulnerability Analysis with Slither ===")
	collectFindings(pipeReader, options.Stdout, result)

	waitErr := <-waitDone
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("analyzer timeout after %s", options.Timeout)
	}
	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
		return nil
	}
	return waitErr
}

// collectFindings groups the analyzer's output lines into findings.
// A new finding begins on a detector or warning marker. Error lines set the
// error flag and are recorded as standalone findings.
func collectFindings(r io.Reader, echo io.Writer, result *Result) {
	var currentFinding strings.Builder

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		fmt.Fprintln(echo, line)

		if strings.Contains(line, "Error:") || strings.Contains(line, "error:") {
			result.HasErrors = true
			result.SlitherFindings = append(result.SlitherFindings, "Error: "+line)
		} else if strings.HasPrefix(line, "INFO:Detectors:") || strings.HasPrefix(line, "WARNING:") {
			if currentFinding.Len() > 0 {
				result.SlitherFindings = append(result.SlitherFindings, currentFinding.String())
				currentFinding.Reset()
			}
			currentFinding.WriteString(line)
			currentFinding.WriteRune('\n')
		} else if currentFinding.Len() > 0 {
			currentFinding.WriteString(line)
			currentFinding.WriteRune('\n')
		}
	}

	if currentFinding.Len() > 0 {
		result.SlitherFindings = append(result.SlitherFindings, currentFinding.String())
	}
}
