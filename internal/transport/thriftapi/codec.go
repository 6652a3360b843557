package thriftapi

import (
	"context"

	"github.com/apache/thrift/lib/go/thrift"

	"market-delivery/internal/domain"
	"market-delivery/internal/service"
)

// fieldReader consumes one field and reports whether it did; unhandled
// fields are skipped by the caller.
type fieldReader func(id int16, ft thrift.TType) (bool, error)

func readStruct(ctx context.Context, in thrift.TProtocol, read fieldReader) error {
	if _, err := in.ReadStructBegin(ctx); err != nil {
		return err
	}
	for {
		_, fieldType, fieldID, err := in.ReadFieldBegin(ctx)
		if err != nil {
			return err
		}
		if fieldType == thrift.STOP {
			break
		}
		handled := false
		if read != nil {
			handled, err = read(fieldID, fieldType)
			if err != nil {
				return err
			}
		}
		if !handled {
			if err := in.Skip(ctx, fieldType); err != nil {
				return err
			}
		}
		if err := in.ReadFieldEnd(ctx); err != nil {
			return err
		}
	}
	return in.ReadStructEnd(ctx)
}

// readArgs reads a method's args struct and closes the message.
func readArgs(ctx context.Context, in thrift.TProtocol, read fieldReader) error {
	if err := readStruct(ctx, in, read); err != nil {
		return err
	}
	return in.ReadMessageEnd(ctx)
}

func readLocation(ctx context.Context, in thrift.TProtocol) (domain.Location, error) {
	var loc domain.Location
	err := readStruct(ctx, in, func(id int16, ft thrift.TType) (bool, error) {
		if ft != thrift.DOUBLE {
			return false, nil
		}
		v, err := in.ReadDouble(ctx)
		switch id {
		case 1:
			loc.Lat = v
		case 2:
			loc.Lng = v
		}
		return true, err
	})
	return loc, err
}

type fieldWriter struct {
	ctx context.Context
	out thrift.TProtocol
	err error
}

func (w *fieldWriter) field(name string, ft thrift.TType, id int16, write func() error) {
	if w.err != nil {
		return
	}
	if w.err = w.out.WriteFieldBegin(w.ctx, name, ft, id); w.err != nil {
		return
	}
	if w.err = write(); w.err != nil {
		return
	}
	w.err = w.out.WriteFieldEnd(w.ctx)
}

func (w *fieldWriter) double(name string, id int16, v float64) {
	w.field(name, thrift.DOUBLE, id, func() error { return w.out.WriteDouble(w.ctx, v) })
}

func writeStruct(ctx context.Context, out thrift.TProtocol, name string, fields func(w *fieldWriter)) error {
	if err := out.WriteStructBegin(ctx, name); err != nil {
		return err
	}
	w := &fieldWriter{ctx: ctx, out: out}
	fields(w)
	if w.err != nil {
		return w.err
	}
	if err := out.WriteFieldStop(ctx); err != nil {
		return err
	}
	return out.WriteStructEnd(ctx)
}

func writeTokenResponse(ctx context.Context, out thrift.TProtocol, token string, expiresAt int64) error {
	return writeStruct(ctx, out, "TokenResponse", func(w *fieldWriter) {
		w.field("token", thrift.STRING, 1, func() error { return out.WriteString(ctx, token) })
		w.field("expiresAt", thrift.I64, 2, func() error { return out.WriteI64(ctx, expiresAt) })
	})
}

func writeTariff(ctx context.Context, out thrift.TProtocol, t domain.Tariff) error {
	return writeStruct(ctx, out, "Tariff", func(w *fieldWriter) {
		w.double("baseFee", 1, t.BaseFee)
		w.double("perKm", 2, t.PerKm)
		w.double("minFee", 3, t.MinFee)
		w.double("maxFee", 4, t.MaxFee)
	})
}

func writeDeliveryQuote(ctx context.Context, out thrift.TProtocol, q *service.DeliveryQuote) error {
	return writeStruct(ctx, out, "DeliveryQuote", func(w *fieldWriter) {
		w.field("deliveryFee", thrift.I64, 1, func() error { return out.WriteI64(ctx, q.FeeCents) })
		w.double("distanceKm", 2, q.DistanceKm)
		w.field("etaMinutes", thrift.I32, 3, func() error { return out.WriteI32(ctx, int32(q.ETAMinutes)) })
		w.field("inCoverage", thrift.BOOL, 4, func() error { return out.WriteBool(ctx, q.InCoverage) })
	})
}
