package pool

import "github.com/joao-brasil/providerpool/pkg/rpcprovider"

// registry holds every Connection record the pool owns, indexed by id
// and mirrored into a per-provider index. All methods assume the
// caller already holds the pool's mutex — the registry has none of its
// own, per §5's single-mutex model.
type registry struct {
	byID       map[string]*Connection
	byProvider map[rpcprovider.ID]map[string]*Connection
}

func newRegistry() *registry {
	return &registry{
		byID:       make(map[string]*Connection),
		byProvider: make(map[rpcprovider.ID]map[string]*Connection),
	}
}

func (r *registry) add(c *Connection) {
	r.byID[c.id] = c
	bucket, ok := r.byProvider[c.providerID]
	if !ok {
		bucket = make(map[string]*Connection)
		r.byProvider[c.providerID] = bucket
	}
	bucket[c.id] = c
}

func (r *registry) remove(id string) *Connection {
	c, ok := r.byID[id]
	if !ok {
		return nil
	}
	delete(r.byID, id)
	if bucket, ok := r.byProvider[c.providerID]; ok {
		delete(bucket, id)
		if len(bucket) == 0 {
			delete(r.byProvider, c.providerID)
		}
	}
	return c
}

func (r *registry) get(id string) (*Connection, bool) {
	c, ok := r.byID[id]
	return c, ok
}

func (r *registry) total() int {
	return len(r.byID)
}

func (r *registry) countForProvider(p rpcprovider.ID) int {
	return len(r.byProvider[p])
}

// forProvider returns the connections currently indexed under p. The
// returned slice is a fresh copy safe to range over after releasing
// the pool mutex.
func (r *registry) forProvider(p rpcprovider.ID) []*Connection {
	bucket := r.byProvider[p]
	out := make([]*Connection, 0, len(bucket))
	for _, c := range bucket {
		out = append(out, c)
	}
	return out
}

// all returns every connection currently registered, in no particular
// order.
func (r *registry) all() []*Connection {
	out := make([]*Connection, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	return out
}

// providerIDs returns the set of provider ids that currently have at
// least one registered connection, plus any provider explicitly
// registered via AddProvider even if it has none yet. Iteration order
// is stable for the duration of one Queue Pump invocation because the
// caller takes a snapshot via this method once per pump.
func (r *registry) providerIDs(known []rpcprovider.ID) []rpcprovider.ID {
	seen := make(map[rpcprovider.ID]bool, len(known))
	out := make([]rpcprovider.ID, 0, len(known))
	for _, p := range known {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for p := range r.byProvider {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
