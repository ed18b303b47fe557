// Package main provides the sitebridge binary: a scheduled Lambda handler and a local CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
)

// envLambdaFunctionName is set by the Lambda runtime.
const envLambdaFunctionName = "AWS_LAMBDA_FUNCTION_NAME"

func main() {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	if os.Getenv(envLambdaFunctionName) != "" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, opts)))
		lambda.Start(handler)
		return
	}

	// Command output goes to stdout, logs to stderr.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, opts)))

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
