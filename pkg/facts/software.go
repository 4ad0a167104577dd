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

package facts

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/carverauto/factsync/pkg/logger"
	"github.com/carverauto/factsync/pkg/models"
	"github.com/carverauto/factsync/pkg/reconcile"
)

const (
	dpkgStatusPath = "/var/lib/dpkg/status"
	dpkgLogPath    = "/var/log/dpkg.log"
)

// DpkgProvider enumerates installed packages from the dpkg status database.
// Hosts without dpkg report an empty inventory.
type DpkgProvider struct {
	statusPath string
	logPath    string
	logger     logger.Logger
}

func NewDpkgProvider(log logger.Logger) *DpkgProvider {
	return &DpkgProvider{statusPath: dpkgStatusPath, logPath: dpkgLogPath, logger: log}
}

func (p *DpkgProvider) Installed(_ context.Context) ([]models.SoftwareEntry, error) {
	f, err := os.Open(p.statusPath)
	if err != nil {
		if os.IsNotExist(err) {
			p.logger.Debug().Str("path", p.statusPath).Msg("No dpkg database, reporting empty inventory")
			return nil, nil
		}

		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	entries := parseDpkgStatus(f)
	p.fillInstallDates(entries)

	return entries, nil
}

// fillInstallDates enriches the inventory with install dates from the dpkg
// transaction log. The log is optional and often rotated, so packages it no
// longer mentions simply stay without a date.
func (p *DpkgProvider) fillInstallDates(entries []models.SoftwareEntry) {
	f, err := os.Open(p.logPath)
	if err != nil {
		return
	}
	defer func() {
		_ = f.Close()
	}()

	dates := parseDpkgLog(f)

	for i := range entries {
		if when, ok := dates[entries[i].Name]; ok {
			d := when
			entries[i].InstallDate = &d
		}
	}
}

// parseDpkgLog extracts per-package install dates from dpkg.log lines of the
// form "2024-01-15 10:23:01 install curl:amd64 <old> <new>". A package
// installed more than once keeps its most recent date.
func parseDpkgLog(r io.Reader) map[string]time.Time {
	dates := make(map[string]time.Time)

	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || fields[2] != "install" {
			continue
		}

		when := reconcile.ParseInstallDate(fields[0])
		if when == nil {
			continue
		}

		name, _, _ := strings.Cut(fields[3], ":")
		if name == "" {
			continue
		}

		dates[name] = *when
	}

	return dates
}

// parseDpkgStatus reads dpkg's control-file format: stanzas separated by
// blank lines, one package per stanza. Only fully installed packages are
// reported.
func parseDpkgStatus(r io.Reader) []models.SoftwareEntry {
	var (
		entries []models.SoftwareEntry
		current models.SoftwareEntry
		status  string
	)

	flush := func() {
		if current.Name != "" && strings.HasSuffix(status, "installed") {
			entries = append(entries, current)
		}

		current = models.SoftwareEntry{}
		status = ""
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			flush()
			continue
		}

		// Continuation lines belong to multi-line fields we don't use.
		if line[0] == ' ' || line[0] == '\t' {
			continue
		}

		field, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}

		value = strings.TrimSpace(value)

		switch field {
		case "Package":
			current.Name = value
		case "Version":
			current.Version = value
		case "Maintainer":
			if value != "" {
				maintainer := value
				current.Publisher = &maintainer
			}
		case "Status":
			status = value
		}
	}

	flush()

	return entries
}
