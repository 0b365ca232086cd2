// Copyright (c) 2019 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package leader

import (
	"encoding/json"
	"os"

	log "github.com/sirupsen/logrus"
)

// ID is the identity a node campaigns with.
type ID struct {
	Hostname string `json:"hostname"`
	HTTPPort int    `json:"http"`
	Version  string `json:"version"`
}

// NewID returns a ID for a server to implement leader.Nomination
func NewID(httpPort int, version string) string {
	hostname, err := os.Hostname()
	if err != nil {
		log.WithError(err).Fatal("Failed to get hostname")
	}
	id := &ID{
		Hostname: hostname,
		HTTPPort: httpPort,
		Version:  version,
	}
	idString, _ := json.Marshal(id)
	return string(idString)
}
