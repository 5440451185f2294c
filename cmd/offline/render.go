package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/daffinity/serverless-offline/internal/template"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	renderFlags struct {
		template string
		payload  string
		request  string
		stage    string
		verbose  bool
	}

	renderCmd = &cobra.Command{
		Use:   "render",
		Short: "Render a mapping template against a sample request",
		Long: `Render a request or response mapping template without starting the gateway.

The template file holds a YAML or JSON mapping, or a bare template string.
The payload file holds the JSON body and the request file describes the
method, path, headers, query and path parameters.`,
		Example: `  offline render --template create.yaml --payload body.json
  offline render --template create.yaml --payload body.json --request request.json -v`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd.OutOrStdout())
		},
	}
)

func init() {
	renderCmd.Flags().StringVarP(&renderFlags.template, "template", "t", "", "path to the template file")
	renderCmd.Flags().StringVar(&renderFlags.payload, "payload", "", "path to a JSON payload file")
	renderCmd.Flags().StringVar(&renderFlags.request, "request", "", "path to a JSON request description")
	renderCmd.Flags().StringVar(&renderFlags.stage, "stage", "", "stage exposed to the template")
	renderCmd.Flags().BoolVarP(&renderFlags.verbose, "verbose", "v", false, "log every rendered expression")
	_ = renderCmd.MarkFlagRequired("template")
}

// sampleRequest is the JSON shape of --request
type sampleRequest struct {
	Method         string            `json:"method"`
	Path           string            `json:"path"`
	RemoteAddr     string            `json:"remoteAddr"`
	Headers        map[string]string `json:"headers"`
	Query          map[string]string `json:"query"`
	Params         map[string]string `json:"params"`
	StageVariables map[string]string `json:"stageVariables"`
}

func runRender(out io.Writer) error {
	raw, err := os.ReadFile(renderFlags.template)
	if err != nil {
		return fmt.Errorf("failed to read template: %w", err)
	}
	var document any
	if err := yaml.Unmarshal(raw, &document); err != nil || !isMapping(document) {
		document = string(raw)
	}

	var payload any
	if renderFlags.payload != "" {
		if err := readJSON(renderFlags.payload, &payload); err != nil {
			return fmt.Errorf("failed to read payload: %w", err)
		}
	}

	req := sampleRequest{Method: "POST", Path: "/", RemoteAddr: "127.0.0.1"}
	if renderFlags.request != "" {
		if err := readJSON(renderFlags.request, &req); err != nil {
			return fmt.Errorf("failed to read request: %w", err)
		}
	}

	lg := zap.NewNop()
	if renderFlags.verbose {
		lg, _ = zap.NewDevelopment()
	}

	ctx := template.BuildContext(template.Request{
		Method:     req.Method,
		Path:       req.Path,
		RemoteAddr: req.RemoteAddr,
		Headers:    req.Headers,
		Query:      req.Query,
		Params:     req.Params,
	}, &template.Options{Stage: renderFlags.stage, StageVariables: req.StageVariables}, payload)

	result, err := template.NewRenderer(lg).Render(document, ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func isMapping(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
