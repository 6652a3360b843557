package thriftapi

import (
	"context"
	"errors"

	"github.com/apache/thrift/lib/go/thrift"

	"market-delivery/internal/auth"
	"market-delivery/internal/domain"
	"market-delivery/internal/service"
)

// Processor serves the DeliveryPricing service over the binary protocol:
//
//	struct Location      { 1: double lat, 2: double lng }
//	struct Tariff        { 1: double baseFee, 2: double perKm, 3: double minFee, 4: double maxFee }
//	struct DeliveryQuote { 1: i64 deliveryFee, 2: double distanceKm, 3: i32 etaMinutes, 4: bool inCoverage }
//
//	TokenResponse IssueToken(1: TokenRequest request)
//	Tariff        GetTariff()
//	DeliveryQuote QuoteDelivery(1: string authToken, 2: Location business, 3: Location delivery)
//	bool          CheckCoverage(1: Location location)
//	i32           EstimateTime(1: double distanceKm, 2: optional double prepTime)
//
// deliveryFee is in cents.
type Processor struct {
	svc          *service.Service
	auth         *auth.Authenticator
	processorMap map[string]thrift.TProcessorFunction
}

type handlerFunc func(ctx context.Context, seqID int32, in, out thrift.TProtocol) (bool, thrift.TException)

type processorFunc struct {
	fn handlerFunc
}

func (p processorFunc) Process(ctx context.Context, seqID int32, in, out thrift.TProtocol) (bool, thrift.TException) {
	return p.fn(ctx, seqID, in, out)
}

func NewProcessor(svc *service.Service, authenticator *auth.Authenticator) *Processor {
	p := &Processor{svc: svc, auth: authenticator}
	p.processorMap = map[string]thrift.TProcessorFunction{
		"IssueToken":    processorFunc{fn: p.handleIssueToken},
		"GetTariff":     processorFunc{fn: p.handleGetTariff},
		"QuoteDelivery": processorFunc{fn: p.handleQuoteDelivery},
		"CheckCoverage": processorFunc{fn: p.handleCheckCoverage},
		"EstimateTime":  processorFunc{fn: p.handleEstimateTime},
	}
	return p
}

func (p *Processor) ProcessorMap() map[string]thrift.TProcessorFunction {
	return p.processorMap
}

func (p *Processor) AddToProcessorMap(name string, processor thrift.TProcessorFunction) {
	p.processorMap[name] = processor
}

func (p *Processor) Process(ctx context.Context, in, out thrift.TProtocol) (bool, thrift.TException) {
	name, messageType, seqID, err := in.ReadMessageBegin(ctx)
	if err != nil {
		return false, thrift.NewTApplicationException(thrift.PROTOCOL_ERROR, err.Error())
	}
	if messageType != thrift.CALL && messageType != thrift.ONEWAY {
		return p.writeException(ctx, out, name, seqID, thrift.NewTApplicationException(thrift.PROTOCOL_ERROR, "invalid message type"))
	}
	processor, ok := p.processorMap[name]
	if !ok {
		_ = in.Skip(ctx, thrift.STRUCT)
		_ = in.ReadMessageEnd(ctx)
		return p.writeException(ctx, out, name, seqID, thrift.NewTApplicationException(thrift.UNKNOWN_METHOD, "unknown method"))
	}
	return processor.Process(ctx, seqID, in, out)
}

func (p *Processor) handleIssueToken(ctx context.Context, seqID int32, in, out thrift.TProtocol) (bool, thrift.TException) {
	var name, role string
	err := readArgs(ctx, in, func(id int16, ft thrift.TType) (bool, error) {
		if id != 1 || ft != thrift.STRUCT {
			return false, nil
		}
		return true, readStruct(ctx, in, func(id int16, ft thrift.TType) (bool, error) {
			var err error
			switch {
			case id == 1 && ft == thrift.STRING:
				name, err = in.ReadString(ctx)
			case id == 2 && ft == thrift.STRING:
				role, err = in.ReadString(ctx)
			default:
				return false, nil
			}
			return true, err
		})
	})
	if err != nil {
		return p.writeException(ctx, out, "IssueToken", seqID, thrift.NewTApplicationException(thrift.PROTOCOL_ERROR, err.Error()))
	}
	token, exp, err := p.auth.IssueToken(name, role)
	if err != nil {
		return p.writeException(ctx, out, "IssueToken", seqID, mapError(err))
	}
	return p.writeReply(ctx, out, "IssueToken", seqID, thrift.STRUCT, func(out thrift.TProtocol) error {
		return writeTokenResponse(ctx, out, token, exp.Unix())
	})
}

func (p *Processor) handleGetTariff(ctx context.Context, seqID int32, in, out thrift.TProtocol) (bool, thrift.TException) {
	if err := readArgs(ctx, in, nil); err != nil {
		return p.writeException(ctx, out, "GetTariff", seqID, thrift.NewTApplicationException(thrift.PROTOCOL_ERROR, err.Error()))
	}
	t := p.svc.GetTariff(ctx)
	return p.writeReply(ctx, out, "GetTariff", seqID, thrift.STRUCT, func(out thrift.TProtocol) error {
		return writeTariff(ctx, out, t)
	})
}

func (p *Processor) handleQuoteDelivery(ctx context.Context, seqID int32, in, out thrift.TProtocol) (bool, thrift.TException) {
	var token string
	var business, delivery domain.Location
	err := readArgs(ctx, in, func(id int16, ft thrift.TType) (bool, error) {
		var err error
		switch {
		case id == 1 && ft == thrift.STRING:
			token, err = in.ReadString(ctx)
		case id == 2 && ft == thrift.STRUCT:
			business, err = readLocation(ctx, in)
		case id == 3 && ft == thrift.STRUCT:
			delivery, err = readLocation(ctx, in)
		default:
			return false, nil
		}
		return true, err
	})
	if err != nil {
		return p.writeException(ctx, out, "QuoteDelivery", seqID, thrift.NewTApplicationException(thrift.PROTOCOL_ERROR, err.Error()))
	}
	if _, err := p.auth.Authorize("Bearer "+token, domain.RoleCustomer, domain.RoleBusiness); err != nil {
		return p.writeException(ctx, out, "QuoteDelivery", seqID, mapError(err))
	}
	quote, err := p.svc.QuoteDelivery(ctx, business, delivery)
	if err != nil {
		return p.writeException(ctx, out, "QuoteDelivery", seqID, mapError(err))
	}
	return p.writeReply(ctx, out, "QuoteDelivery", seqID, thrift.STRUCT, func(out thrift.TProtocol) error {
		return writeDeliveryQuote(ctx, out, quote)
	})
}

func (p *Processor) handleCheckCoverage(ctx context.Context, seqID int32, in, out thrift.TProtocol) (bool, thrift.TException) {
	var loc domain.Location
	err := readArgs(ctx, in, func(id int16, ft thrift.TType) (bool, error) {
		if id != 1 || ft != thrift.STRUCT {
			return false, nil
		}
		var err error
		loc, err = readLocation(ctx, in)
		return true, err
	})
	if err != nil {
		return p.writeException(ctx, out, "CheckCoverage", seqID, thrift.NewTApplicationException(thrift.PROTOCOL_ERROR, err.Error()))
	}
	inside, err := p.svc.CheckCoverage(loc)
	if err != nil {
		return p.writeException(ctx, out, "CheckCoverage", seqID, mapError(err))
	}
	return p.writeReply(ctx, out, "CheckCoverage", seqID, thrift.BOOL, func(out thrift.TProtocol) error {
		return out.WriteBool(ctx, inside)
	})
}

func (p *Processor) handleEstimateTime(ctx context.Context, seqID int32, in, out thrift.TProtocol) (bool, thrift.TException) {
	var km float64
	var prep *float64
	err := readArgs(ctx, in, func(id int16, ft thrift.TType) (bool, error) {
		if ft != thrift.DOUBLE {
			return false, nil
		}
		v, err := in.ReadDouble(ctx)
		switch id {
		case 1:
			km = v
		case 2:
			prep = &v
		}
		return true, err
	})
	if err != nil {
		return p.writeException(ctx, out, "EstimateTime", seqID, thrift.NewTApplicationException(thrift.PROTOCOL_ERROR, err.Error()))
	}
	minutes, err := p.svc.EstimateDeliveryTime(km, prep)
	if err != nil {
		return p.writeException(ctx, out, "EstimateTime", seqID, mapError(err))
	}
	return p.writeReply(ctx, out, "EstimateTime", seqID, thrift.I32, func(out thrift.TProtocol) error {
		return out.WriteI32(ctx, int32(minutes))
	})
}

// writeReply writes a result struct whose field 0 (success) has type ft.
func (p *Processor) writeReply(ctx context.Context, out thrift.TProtocol, method string, seqID int32, ft thrift.TType, writeSuccess func(out thrift.TProtocol) error) (bool, thrift.TException) {
	steps := []func() error{
		func() error { return out.WriteMessageBegin(ctx, method, thrift.REPLY, seqID) },
		func() error { return out.WriteStructBegin(ctx, method+"_result") },
		func() error { return out.WriteFieldBegin(ctx, "success", ft, 0) },
		func() error { return writeSuccess(out) },
		func() error { return out.WriteFieldEnd(ctx) },
		func() error { return out.WriteFieldStop(ctx) },
		func() error { return out.WriteStructEnd(ctx) },
		func() error { return out.WriteMessageEnd(ctx) },
		func() error { return out.Flush(ctx) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return false, thrift.NewTApplicationException(thrift.PROTOCOL_ERROR, err.Error())
		}
	}
	return true, nil
}

func (p *Processor) writeException(ctx context.Context, out thrift.TProtocol, method string, seqID int32, appErr thrift.TApplicationException) (bool, thrift.TException) {
	_ = out.WriteMessageBegin(ctx, method, thrift.EXCEPTION, seqID)
	_ = appErr.Write(ctx, out)
	_ = out.WriteMessageEnd(ctx)
	_ = out.Flush(ctx)
	return false, appErr
}

func mapError(err error) thrift.TApplicationException {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return thrift.NewTApplicationException(thrift.PROTOCOL_ERROR, "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		return thrift.NewTApplicationException(thrift.PROTOCOL_ERROR, "forbidden")
	case errors.Is(err, domain.ErrNotFound):
		return thrift.NewTApplicationException(thrift.PROTOCOL_ERROR, "not found")
	case errors.Is(err, domain.ErrConflict):
		return thrift.NewTApplicationException(thrift.PROTOCOL_ERROR, "conflict")
	case errors.Is(err, domain.ErrInvalid):
		return thrift.NewTApplicationException(thrift.PROTOCOL_ERROR, "invalid request")
	case errors.Is(err, domain.ErrUpstream):
		return thrift.NewTApplicationException(thrift.INTERNAL_ERROR, "upstream unavailable")
	default:
		return thrift.NewTApplicationException(thrift.INTERNAL_ERROR, "internal error")
	}
}
