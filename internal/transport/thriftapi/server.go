package thriftapi

import (
	"github.com/apache/thrift/lib/go/thrift"

	"market-delivery/internal/auth"
	"market-delivery/internal/service"
)

type Server struct {
	server *thrift.TSimpleServer
}

// NewServer listens on addr with framed transport and the binary protocol.
func NewServer(addr string, svc *service.Service, authenticator *auth.Authenticator) (*Server, error) {
	socket, err := thrift.NewTServerSocket(addr)
	if err != nil {
		return nil, err
	}
	cfg := &thrift.TConfiguration{}
	processor := NewProcessor(svc, authenticator)
	transportFactory := thrift.NewTFramedTransportFactoryConf(thrift.NewTTransportFactory(), cfg)
	protocolFactory := thrift.NewTBinaryProtocolFactoryConf(cfg)
	server := thrift.NewTSimpleServer4(processor, socket, transportFactory, protocolFactory)
	return &Server{server: server}, nil
}

func (s *Server) Serve() error {
	return s.server.Serve()
}

func (s *Server) Stop() {
	_ = s.server.Stop()
}
