package core

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/shopspring/decimal"
)

// MUS serializers for the persisted domain types. Integers use varint
// encoding, strings are length-prefixed, timestamps are encoded as Unix
// seconds plus nanoseconds, and amounts travel as decimal strings so no
// precision is lost.

var (
	_ mus.Serializer[ID]     = IDMUS
	_ mus.Serializer[Tenant] = TenantMUS
	_ mus.Serializer[Record] = RecordMUS
)

// IDMUS serializes IDs.
var IDMUS = idMUS{}

type idMUS struct{}

func (idMUS) Marshal(v ID, bs []byte) int {
	return varint.Uint64.Marshal(uint64(v), bs)
}

func (idMUS) Unmarshal(bs []byte) (ID, int, error) {
	u, n, err := varint.Uint64.Unmarshal(bs)
	return ID(u), n, err
}

func (idMUS) Size(v ID) int {
	return varint.Uint64.Size(uint64(v))
}

func (idMUS) Skip(bs []byte) (int, error) {
	return varint.Uint64.Skip(bs)
}

type timeMUS struct{}

func (timeMUS) Marshal(v time.Time, bs []byte) (n int) {
	n = varint.Int64.Marshal(v.Unix(), bs)
	n += varint.Int.Marshal(v.Nanosecond(), bs[n:])
	return
}

func (timeMUS) Unmarshal(bs []byte) (v time.Time, n int, err error) {
	var (
		sec  int64
		nsec int
		n1   int
	)
	if sec, n, err = varint.Int64.Unmarshal(bs); err != nil {
		return
	}
	nsec, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v = time.Unix(sec, int64(nsec)).UTC()
	return
}

func (timeMUS) Size(v time.Time) int {
	return varint.Int64.Size(v.Unix()) + varint.Int.Size(v.Nanosecond())
}

func (timeMUS) Skip(bs []byte) (n int, err error) {
	if n, err = varint.Int64.Skip(bs); err != nil {
		return
	}
	n1, err := varint.Int.Skip(bs[n:])
	n += n1
	return
}

type decimalMUS struct{}

func (decimalMUS) Marshal(v decimal.Decimal, bs []byte) int {
	return ord.String.Marshal(v.String(), bs)
}

func (decimalMUS) Unmarshal(bs []byte) (decimal.Decimal, int, error) {
	s, n, err := ord.String.Unmarshal(bs)
	if err != nil {
		return decimal.Decimal{}, n, err
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, n, fmt.Errorf("decode amount: %w", err)
	}
	return d, n, nil
}

func (decimalMUS) Size(v decimal.Decimal) int {
	return ord.String.Size(v.String())
}

func (decimalMUS) Skip(bs []byte) (int, error) {
	return ord.String.Skip(bs)
}

// SubscriptionMUS serializes Subscriptions.
var SubscriptionMUS = subscriptionMUS{}

type subscriptionMUS struct{}

func (subscriptionMUS) Marshal(v Subscription, bs []byte) (n int) {
	n = ord.String.Marshal(v.Plan, bs)
	n += varint.Int.Marshal(int(v.Status), bs[n:])
	n += varint.Int64.Marshal(v.Limit, bs[n:])
	n += varint.Int64.Marshal(v.Used, bs[n:])
	return
}

func (subscriptionMUS) Unmarshal(bs []byte) (v Subscription, n int, err error) {
	var (
		status int
		n1     int
	)
	if v.Plan, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	status, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Status = SubscriptionStatus(status)
	v.Limit, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Used, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	return
}

func (subscriptionMUS) Size(v Subscription) int {
	return ord.String.Size(v.Plan) +
		varint.Int.Size(int(v.Status)) +
		varint.Int64.Size(v.Limit) +
		varint.Int64.Size(v.Used)
}

func (subscriptionMUS) Skip(bs []byte) (n int, err error) {
	var n1 int
	if n, err = ord.String.Skip(bs); err != nil {
		return
	}
	for i := 0; i < 3; i++ {
		n1, err = varint.Int64.Skip(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	return
}

// TenantMUS serializes Tenants.
var TenantMUS = tenantMUS{}

type tenantMUS struct{}

func (tenantMUS) Marshal(v Tenant, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += ord.String.Marshal(v.Email, bs[n:])
	n += ord.String.Marshal(v.PasswordHash, bs[n:])
	n += varint.Int.Marshal(int(v.Role), bs[n:])
	n += SubscriptionMUS.Marshal(v.Subscription, bs[n:])
	n += timeMUS{}.Marshal(v.CreatedAt, bs[n:])
	n += timeMUS{}.Marshal(v.UpdatedAt, bs[n:])
	return
}

func (tenantMUS) Unmarshal(bs []byte) (v Tenant, n int, err error) {
	var (
		role int
		n1   int
	)
	if v.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	v.Email, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.PasswordHash, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	role, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Role = Role(role)
	v.Subscription, n1, err = SubscriptionMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.CreatedAt, n1, err = timeMUS{}.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.UpdatedAt, n1, err = timeMUS{}.Unmarshal(bs[n:])
	n += n1
	return
}

func (tenantMUS) Size(v Tenant) int {
	return IDMUS.Size(v.Id) +
		ord.String.Size(v.Email) +
		ord.String.Size(v.PasswordHash) +
		varint.Int.Size(int(v.Role)) +
		SubscriptionMUS.Size(v.Subscription) +
		timeMUS{}.Size(v.CreatedAt) +
		timeMUS{}.Size(v.UpdatedAt)
}

func (tenantMUS) Skip(bs []byte) (n int, err error) {
	var n1 int
	if n, err = IDMUS.Skip(bs); err != nil {
		return
	}
	for i := 0; i < 2; i++ {
		n1, err = ord.String.Skip(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	n1, err = varint.Int.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = SubscriptionMUS.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	for i := 0; i < 2; i++ {
		n1, err = timeMUS{}.Skip(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	return
}

// RecordMUS serializes Records.
var RecordMUS = recordMUS{}

type recordMUS struct{}

func (recordMUS) Marshal(v Record, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += IDMUS.Marshal(v.OwnerId, bs[n:])
	n += ord.String.Marshal(v.Date, bs[n:])
	n += ord.String.Marshal(v.VendorName, bs[n:])
	n += decimalMUS{}.Marshal(v.Amount, bs[n:])
	n += ord.String.Marshal(v.Category, bs[n:])
	n += ord.String.Marshal(v.ImageRef, bs[n:])
	n += varint.Int.Marshal(int(v.Source), bs[n:])
	n += varint.Int.Marshal(int(v.Status), bs[n:])
	n += timeMUS{}.Marshal(v.CreatedAt, bs[n:])
	n += timeMUS{}.Marshal(v.UpdatedAt, bs[n:])
	return
}

func (recordMUS) Unmarshal(bs []byte) (v Record, n int, err error) {
	var (
		enum int
		n1   int
	)
	if v.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	v.OwnerId, n1, err = IDMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Date, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.VendorName, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Amount, n1, err = decimalMUS{}.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Category, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.ImageRef, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	enum, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Source = SourceChannel(enum)
	enum, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Status = RecordStatus(enum)
	v.CreatedAt, n1, err = timeMUS{}.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.UpdatedAt, n1, err = timeMUS{}.Unmarshal(bs[n:])
	n += n1
	return
}

func (recordMUS) Size(v Record) int {
	return IDMUS.Size(v.Id) +
		IDMUS.Size(v.OwnerId) +
		ord.String.Size(v.Date) +
		ord.String.Size(v.VendorName) +
		decimalMUS{}.Size(v.Amount) +
		ord.String.Size(v.Category) +
		ord.String.Size(v.ImageRef) +
		varint.Int.Size(int(v.Source)) +
		varint.Int.Size(int(v.Status)) +
		timeMUS{}.Size(v.CreatedAt) +
		timeMUS{}.Size(v.UpdatedAt)
}

func (recordMUS) Skip(bs []byte) (n int, err error) {
	var n1 int
	if n, err = IDMUS.Skip(bs); err != nil {
		return
	}
	n1, err = IDMUS.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	for i := 0; i < 5; i++ {
		n1, err = ord.String.Skip(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	for i := 0; i < 2; i++ {
		n1, err = varint.Int.Skip(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	for i := 0; i < 2; i++ {
		n1, err = timeMUS{}.Skip(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	return
}
