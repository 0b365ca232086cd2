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

package rpc

import (
	"fmt"
	"net"
	nethttp "net/http"

	"github.com/pkg/errors"
	"go.uber.org/yarpc/api/transport"
	"go.uber.org/yarpc/transport/grpc"
	"go.uber.org/yarpc/transport/http"
)

const (
	// MaxRecvMsgSize is the largest acceptable RPC message size.
	MaxRecvMsgSize = 64 * 1024 * 1024 // 64MB

	// EndpointPath is where the HTTP inbound serves yarpc procedures.
	// Every other path falls through to the mux.
	EndpointPath = "/api"
)

// NewTransport returns a new transport, using the default transport layer.
func NewTransport() *grpc.Transport {
	return grpc.NewTransport(
		grpc.ClientMaxRecvMsgSize(MaxRecvMsgSize),
		grpc.ServerMaxRecvMsgSize(MaxRecvMsgSize),
	)
}

// NewInbounds creates both HTTP and gRPC inbounds for the given ports.
// mux serves the non-RPC endpoints of the HTTP port, such as metrics
// and health.
func NewInbounds(
	httpPort int,
	grpcPort int,
	mux *nethttp.ServeMux) ([]transport.Inbound, error) {

	ht := http.NewTransport()
	gt := NewTransport()

	gl, err := net.Listen("tcp", fmt.Sprintf(":%d", grpcPort))
	if err != nil {
		return nil, errors.Wrapf(err, "listen on gRPC port %d", grpcPort)
	}

	return []transport.Inbound{
		ht.NewInbound(
			fmt.Sprintf(":%d", httpPort),
			http.Mux(EndpointPath, mux),
		),
		gt.NewInbound(gl),
	}, nil
}
