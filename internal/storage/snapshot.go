package storage

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// SnapshotVersion is the record layout written by this build.
const SnapshotVersion = 1

// ErrUnsupportedVersion is returned for snapshots written by a newer layout.
var ErrUnsupportedVersion = errors.New("unsupported snapshot version")

// EncodeSnapshot writes {"version":N,"items":[...]} calling item for each
// element index.
func EncodeSnapshot(n int, item func(e *jx.Encoder, i int)) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("version")
	e.Int(SnapshotVersion)
	e.FieldStart("items")
	e.ArrStart()
	for i := range n {
		item(&e, i)
	}
	e.ArrEnd()
	e.ObjEnd()
	return e.Bytes()
}

// DecodeSnapshot reads a snapshot produced by EncodeSnapshot, calling item
// for every element of "items". Records without a version are treated as
// version 1.
func DecodeSnapshot(data []byte, item func(d *jx.Decoder) error) error {
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "version":
			v, err := d.Int()
			if err != nil {
				return err
			}
			if v > SnapshotVersion {
				return errors.Wrapf(ErrUnsupportedVersion, "version %d", v)
			}
			return nil
		case "items":
			if d.Next() == jx.Null {
				return d.Null()
			}
			return d.Arr(item)
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return errors.Wrap(err, "decode snapshot")
	}
	return nil
}
