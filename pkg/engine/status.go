package engine

import (
	"github.com/baobab-engine/baobab/pkg/bambooerr"
	"github.com/baobab-engine/baobab/pkg/content"
	"github.com/baobab-engine/baobab/pkg/statushash"
)

// CurrentHash returns clumpID's change token for kind, recomputing it
// if anything has touched that table since the last call (spec §4.7).
func (e *Engine) CurrentHash(kind statushash.Kind, clumpID string) (string, error) {
	c, err := e.clump(clumpID)
	if err != nil {
		return "", err
	}

	switch kind {
	case statushash.Content:
		return c.status.CurrentHash(kind, func() ([][]byte, error) {
			var chunks [][]byte
			_, err := c.content.Foldl(nil, func(_ interface{}, k content.Key, v content.Value) (interface{}, error) {
				chunks = append(chunks, append(append([]byte(nil), v.Entry...), v.Payload...))
				return nil, nil
			})
			return chunks, err
		})
	case statushash.Identity:
		return c.status.CurrentHash(kind, func() ([][]byte, error) {
			refs, err := e.identity.List()
			if err != nil {
				return nil, err
			}
			chunks := make([][]byte, len(refs))
			for i, r := range refs {
				chunks[i] = []byte(r.Alias + ":" + r.PublicB62)
			}
			return chunks, nil
		})
	default:
		return "", bambooerr.New(bambooerr.KindBadArgs, "engine: unknown status kind %q", kind)
	}
}
