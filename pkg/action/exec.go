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

package action

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// runCommand blocks until name/argv exits, capturing combined
// stdout+stderr. A non-zero exit is not a Go error for our purposes:
// §4.7 says the exit code itself becomes the reported metric, so only a
// failure to even start the process is returned as err.
func runCommand(ctx context.Context, name string, argv []string) (exitCode int, output string, err error) {
	cmd := exec.CommandContext(ctx, name, argv...)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	runErr := cmd.Run()
	output = out.String()

	if runErr == nil {
		return 0, output, nil
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return exitErr.ExitCode(), output, nil
	}

	return -1, output, runErr
}

// runShell spawns line through the platform shell (§4.7 "otherwise as
// above").
func runShell(ctx context.Context, line string) (exitCode int, output string, err error) {
	return runCommand(ctx, "/bin/sh", []string{"-c", line})
}
