package discovery

import (
	"fmt"
	"net"

	capi "github.com/hashicorp/consul/api"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// ServeHealth starts a gRPC server on addr exposing only the standard health
// service. Consul probes it with a gRPC check.
func ServeHealth(addr string) (*grpc.Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("discovery: listen on %s: %w", addr, err)
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	go func() {
		_ = grpcServer.Serve(listener)
	}()

	return grpcServer, nil
}

// Registration describes a service instance to register with Consul.
type Registration struct {
	Name     string
	ID       string
	Address  string
	Port     int
	GRPCPort int
}

// Register registers the service with the local Consul agent using a gRPC
// health check against the address started by ServeHealth.
func Register(consulAddr string, reg Registration) (func() error, error) {
	client, err := capi.NewClient(&capi.Config{Address: consulAddr})
	if err != nil {
		return nil, fmt.Errorf("discovery: consul client: %w", err)
	}

	serviceReg := &capi.AgentServiceRegistration{
		ID:      reg.ID,
		Name:    reg.Name,
		Address: reg.Address,
		Port:    reg.Port,
		Check: &capi.AgentServiceCheck{
			GRPC:                           fmt.Sprintf("%s:%d", reg.Address, reg.GRPCPort),
			Interval:                       "10s",
			Timeout:                        "5s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}

	if err := client.Agent().ServiceRegister(serviceReg); err != nil {
		return nil, fmt.Errorf("discovery: service register: %w", err)
	}

	deregister := func() error {
		return client.Agent().ServiceDeregister(reg.ID)
	}

	return deregister, nil
}
