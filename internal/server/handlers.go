package server

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/eternalApril/emberkv/internal/resp"
	"github.com/eternalApril/emberkv/internal/storage"
)

// ping replies PONG, or echoes its single argument
func ping(ctx *cmdContext) (resp.Value, error) {
	switch len(ctx.args) {
	case 0:
		return resp.MakeSimpleString("PONG"), nil
	case 1:
		return statusReply(ctx.args[0]), nil
	default:
		return resp.Value{}, errWrongArity(ctx.name)
	}
}

// echo replies with its argument
func echo(ctx *cmdContext) (resp.Value, error) {
	return statusReply(ctx.args[0]), nil
}

// statusReply frames s as a simple string. A simple string cannot carry CR or LF,
// so such payloads go out as a bulk string
func statusReply(s string) resp.Value {
	if strings.ContainsAny(s, "\r\n") {
		return resp.MakeBulkString(s)
	}
	return resp.MakeSimpleString(s)
}

// setOptions is the parsed modifier region of SET
type setOptions struct {
	ttl time.Duration
	nx  bool // only set if the key does not exist
	xx  bool // only set if the key already exists
}

// conditional reports whether the write depends on the current entry
func (o setOptions) conditional() bool {
	return o.nx || o.xx
}

// set SET key value [PX ms | EX sec] [NX | XX]
func set(ctx *cmdContext) (resp.Value, error) {
	key, value := ctx.args[0], ctx.args[1]

	opts, err := parseSetOptions(ctx.args[2:])
	if err != nil {
		return resp.Value{}, err
	}

	if !opts.conditional() {
		ctx.storage.Put(key, value, opts.ttl)
		return resp.MakeSimpleString("OK"), nil
	}

	now := ctx.now
	written := ctx.storage.PutIf(key, value, opts.ttl, func(cur storage.StoredValue, ok bool) bool {
		// an expired entry that was not evicted yet counts as absent
		present := ok && !cur.ExpiredAt(now)

		if opts.nx && present {
			return false
		}
		if opts.xx && !present {
			return false
		}
		return true
	})

	if !written {
		return resp.MakeNilBulkString(), nil
	}
	return resp.MakeSimpleString("OK"), nil
}

// parseSetOptions validates the whole modifier region before interpreting any number,
// so a malformed command is always a syntax error first
func parseSetOptions(mods []string) (setOptions, error) {
	var (
		opts    setOptions
		ttlUnit time.Duration
		ttlRaw  string
	)

	for i := 0; i < len(mods); i++ {
		switch strings.ToUpper(mods[i]) {
		case "NX":
			if opts.xx {
				return setOptions{}, errSyntax
			}
			opts.nx = true

		case "XX":
			if opts.nx {
				return setOptions{}, errSyntax
			}
			opts.xx = true

		case "PX", "EX":
			// only one TTL, and it needs a value after it
			if ttlUnit != 0 || i+1 >= len(mods) {
				return setOptions{}, errSyntax
			}

			ttlUnit = time.Millisecond
			if strings.EqualFold(mods[i], "EX") {
				ttlUnit = time.Second
			}

			i++
			ttlRaw = mods[i]

		default:
			return setOptions{}, errSyntax
		}
	}

	if ttlUnit != 0 {
		ttl, err := parseTTL(ttlRaw, ttlUnit)
		if err != nil {
			return setOptions{}, err
		}
		opts.ttl = ttl
	}

	return opts, nil
}

// parseTTL turns a positive decimal count of unit into a duration
func parseTTL(raw string, unit time.Duration) (time.Duration, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errNotInteger
	}

	if n <= 0 || n > math.MaxInt64/int64(unit) {
		return 0, errInvalidExpire
	}

	return time.Duration(n) * unit, nil
}

// get GET key. An expired entry is evicted and reported as missing
func get(ctx *cmdContext) (resp.Value, error) {
	key := ctx.args[0]

	entry, ok := ctx.storage.GetIfPresent(key)
	if !ok {
		return resp.MakeNilBulkString(), nil
	}

	if entry.ExpiredAt(ctx.now) {
		// a newer write may have landed since the read, only drop what was observed
		if ctx.storage.DeleteVersion(key, entry.Version) {
			ctx.evicted()
		}
		return resp.MakeNilBulkString(), nil
	}

	return resp.MakeBulkString(entry.Value), nil
}
