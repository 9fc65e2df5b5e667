// Copyright 2023 The CubeFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package remote

import (
	"fmt"
	"strings"

	"google.golang.org/grpc/resolver"
)

// lbResolverSchema resolves a comma separated list of cell server
// addresses, balanced round robin.
const lbResolverSchema = "static"

func init() {
	resolver.Register(&LBBuilder{})
}

type LBBuilder struct{}

func (lb *LBBuilder) Build(target resolver.Target, cc resolver.ClientConn,
	opts resolver.BuildOptions) (resolver.Resolver, error,
) {
	r := &LBResolver{
		endpoints: strings.Split(target.Endpoint(), ","),
		cc:        cc,
	}
	r.ResolveNow(resolver.ResolveNowOptions{})
	return r, nil
}

func (lb *LBBuilder) Scheme() string {
	return lbResolverSchema
}

type LBResolver struct {
	endpoints []string
	cc        resolver.ClientConn
}

func (lr *LBResolver) ResolveNow(opts resolver.ResolveNowOptions) {
	var addresses []resolver.Address
	for i, addr := range lr.endpoints {
		if addr = strings.TrimSpace(addr); addr == "" {
			continue
		}
		addresses = append(addresses, resolver.Address{
			Addr:       addr,
			ServerName: fmt.Sprintf("cellserver-%d", i+1),
		})
	}
	lr.cc.UpdateState(resolver.State{Addresses: addresses})
}

func (lr *LBResolver) Close() {}

// dialTarget picks the static resolver for address lists.
func dialTarget(addr string) string {
	if strings.Contains(addr, ",") {
		return lbResolverSchema + ":///" + addr
	}
	return addr
}
