package core

import (
	"slices"
	"time"

	mus "github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for the domain types stored in BadgerDB. Written by hand
// against the mus-go primitives; field order is part of the storage format
// and must not change without a migration.
var (
	IDMUS       = idMUS{}
	DocumentMUS = documentMUS{}
)

var (
	_ mus.Serializer[ID]       = IDMUS
	_ mus.Serializer[Document] = DocumentMUS
)

type idMUS struct{}

func (idMUS) Marshal(id ID, bs []byte) int {
	return varint.Uint64.Marshal(uint64(id), bs)
}

func (idMUS) Unmarshal(bs []byte) (ID, int, error) {
	v, n, err := varint.Uint64.Unmarshal(bs)
	return ID(v), n, err
}

func (idMUS) Size(id ID) int {
	return varint.Uint64.Size(uint64(id))
}

func (idMUS) Skip(bs []byte) (int, error) {
	return varint.Uint64.Skip(bs)
}

type documentMUS struct{}

func (documentMUS) Marshal(doc Document, bs []byte) (n int) {
	n = IDMUS.Marshal(doc.Id, bs)
	n += ord.String.Marshal(doc.Path, bs[n:])
	n += ord.String.Marshal(doc.Contents, bs[n:])
	n += marshalVector(doc.Vector, bs[n:])
	n += marshalTime(doc.InsertedAt, bs[n:])
	n += marshalTime(doc.UpdatedAt, bs[n:])
	n += marshalMetadata(doc.Metadata, bs[n:])
	return
}

func (documentMUS) Unmarshal(bs []byte) (doc Document, n int, err error) {
	var m int
	if doc.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	if doc.Path, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return doc, n + m, err
	}
	n += m
	if doc.Contents, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return doc, n + m, err
	}
	n += m
	if doc.Vector, m, err = unmarshalVector(bs[n:]); err != nil {
		return doc, n + m, err
	}
	n += m
	if doc.InsertedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return doc, n + m, err
	}
	n += m
	if doc.UpdatedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return doc, n + m, err
	}
	n += m
	if doc.Metadata, m, err = unmarshalMetadata(bs[n:]); err != nil {
		return doc, n + m, err
	}
	n += m
	return doc, n, nil
}

func (documentMUS) Size(doc Document) (size int) {
	size = IDMUS.Size(doc.Id)
	size += ord.String.Size(doc.Path)
	size += ord.String.Size(doc.Contents)
	size += sizeVector(doc.Vector)
	size += sizeTime(doc.InsertedAt)
	size += sizeTime(doc.UpdatedAt)
	size += sizeMetadata(doc.Metadata)
	return
}

func (d documentMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = d.Unmarshal(bs)
	return n, err
}

// Vectors are a length-prefixed run of raw float32 values.

func marshalVector(v []float32, bs []byte) (n int) {
	n = varint.PositiveInt.Marshal(len(v), bs)
	for _, f := range v {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return
}

func unmarshalVector(bs []byte) (v []float32, n int, err error) {
	length, n, err := varint.PositiveInt.Unmarshal(bs)
	if err != nil {
		return nil, n, err
	}
	if length == 0 {
		return nil, n, nil
	}
	v = make([]float32, length)
	var m int
	for i := 0; i < length; i++ {
		if v[i], m, err = raw.Float32.Unmarshal(bs[n:]); err != nil {
			return nil, n + m, err
		}
		n += m
	}
	return v, n, nil
}

func sizeVector(v []float32) (size int) {
	size = varint.PositiveInt.Size(len(v))
	for _, f := range v {
		size += raw.Float32.Size(f)
	}
	return
}

// Timestamps are stored as Unix microseconds.

func marshalTime(t time.Time, bs []byte) int {
	return varint.Int64.Marshal(t.UnixMicro(), bs)
}

func unmarshalTime(bs []byte) (time.Time, int, error) {
	v, n, err := varint.Int64.Unmarshal(bs)
	if err != nil {
		return time.Time{}, n, err
	}
	return time.UnixMicro(v).UTC(), n, nil
}

func sizeTime(t time.Time) int {
	return varint.Int64.Size(t.UnixMicro())
}

// Metadata maps are a length-prefixed run of key/value string pairs.
// Keys are written in insertion-independent (sorted) order so identical maps
// always serialize to identical bytes.

func marshalMetadata(md map[string]string, bs []byte) (n int) {
	n = varint.PositiveInt.Marshal(len(md), bs)
	for _, k := range sortedKeys(md) {
		n += ord.String.Marshal(k, bs[n:])
		n += ord.String.Marshal(md[k], bs[n:])
	}
	return
}

func unmarshalMetadata(bs []byte) (md map[string]string, n int, err error) {
	length, n, err := varint.PositiveInt.Unmarshal(bs)
	if err != nil {
		return nil, n, err
	}
	if length == 0 {
		return nil, n, nil
	}
	md = make(map[string]string, length)
	var (
		k, v string
		m    int
	)
	for i := 0; i < length; i++ {
		if k, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
			return nil, n + m, err
		}
		n += m
		if v, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
			return nil, n + m, err
		}
		n += m
		md[k] = v
	}
	return md, n, nil
}

func sizeMetadata(md map[string]string) (size int) {
	size = varint.PositiveInt.Size(len(md))
	for k, v := range md {
		size += ord.String.Size(k)
		size += ord.String.Size(v)
	}
	return
}

func sortedKeys(md map[string]string) []string {
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
