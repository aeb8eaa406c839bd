/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package provider

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

var errProviderTimedOut = errors.New("provider command exceeded its timeout")

// runCommand spawns cmdline through the platform shell, per §4.2 step 2,
// and captures stdout. A command that does not finish within timeout is
// killed and errProviderTimedOut is returned; the caller must not disturb
// its cache on this path (§8 boundary behavior).
func runCommand(ctx context.Context, cmdline string, timeout time.Duration) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", cmdline)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return nil, errProviderTimedOut
	}

	if err != nil {
		return nil, err
	}

	return stdout.Bytes(), nil
}
