package transform

import (
	"context"
	"fmt"

	"github.com/bfv/configs/pkg/schema"
	"github.com/bfv/configs/pkg/script"
	"github.com/bfv/configs/pkg/style"
)

// DocumentKeys rewrites the stored keys of a plain mapping property into
// document keys with its key generator script. Without a generator the
// keys are returned unchanged.
func DocumentKeys(ctx context.Context, prop *schema.PropertySchema, keys []string, env Env) ([]string, error) {
	return rewriteKeys(ctx, prop, keys, prop.KeyGenerator, InvalidKey, env)
}

// StoredKeys reverses DocumentKeys with the key parser script.
func StoredKeys(ctx context.Context, prop *schema.PropertySchema, keys []string, env Env) ([]string, error) {
	return rewriteKeys(ctx, prop, keys, prop.KeyParser, UnparseableKey, env)
}

func rewriteKeys(ctx context.Context, prop *schema.PropertySchema, keys []string, s *script.Spec, kind Kind, env Env) ([]string, error) {
	if s.IsZero() {
		return keys, nil
	}
	out := make([]string, len(keys))
	from := make(map[string]string, len(keys))
	for i, key := range keys {
		res, err := env.eval(ctx, s, key)
		if err != nil {
			return nil, &TransformError{Kind: kind, Property: prop.Name, Key: key, Err: err}
		}
		if res == nil {
			return nil, &TransformError{Kind: kind, Property: prop.Name, Key: key, Err: fmt.Errorf("%s returned nothing", s.Name)}
		}
		v, err := schema.CoerceScalar(style.KindString, res)
		if err != nil {
			return nil, &TransformError{Kind: kind, Property: prop.Name, Key: key, Err: err}
		}
		rewritten := v.(string)
		if prev, dup := from[rewritten]; dup {
			return nil, &TransformError{Kind: DuplicateKey, Property: prop.Name, Key: rewritten, Err: fmt.Errorf("both %q and %q map to it", prev, key)}
		}
		from[rewritten] = key
		out[i] = rewritten
	}
	return out, nil
}
