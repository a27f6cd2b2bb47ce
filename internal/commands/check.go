// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package commands

import (
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/tracebridge/internal/config"
	"github.com/tombee/tracebridge/pkg/langfuse"
)

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify collector credentials",
		Long: `Create and update a heartbeat trace against the configured collector
to verify that the credentials and endpoint work end to end.`,
		RunE: runCheck,
	}
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	client, err := langfuse.New(langfuse.Config{
		PublicKey: cfg.PublicKey,
		SecretKey: cfg.SecretKey,
		Endpoint:  cfg.Endpoint,
		Timeout:   cfg.Timeout,
		// A silent failure would defeat the point of the check.
		PropagateErrors: true,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	ctx := cmd.Context()

	traceID, err := client.CreateTrace(ctx, langfuse.TraceBody{
		Name: "tracebridge-check",
		Metadata: map[string]any{
			"source": "tracebridge check",
			"go":     runtime.Version(),
		},
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("trace creation failed: %w", err)
	}

	if err := client.UpdateTrace(ctx, traceID, langfuse.TraceUpdate{Output: "ok"}); err != nil {
		return fmt.Errorf("trace update failed: %w", err)
	}

	cmd.Printf("collector reachable, heartbeat trace %s created\n", traceID)
	return nil
}
