package as

import "context"

// Client is the public entry point: a Cluster plus the record operations
// layered on top of the command execution engine, per spec.md §4.10's
// "general hooks" contract.
type Client struct {
	cluster *Cluster
}

// NewClient resolves seeds, performs the initial stabilizing tend, and
// starts the background tender. The returned Client is ready for use
// once this call returns.
func NewClient(ctx context.Context, seeds []Host, policy *ClientPolicy) (*Client, error) {
	cluster, err := NewCluster(ctx, seeds, policy)
	if err != nil {
		return nil, err
	}
	return &Client{cluster: cluster}, nil
}

// Close stops the tender and closes every node connection.
func (c *Client) Close() { c.cluster.Close() }

// Cluster exposes the underlying Cluster for callers that need node or
// partition-map introspection (metrics, admin tooling).
func (c *Client) Cluster() *Cluster { return c.cluster }

func (c *Client) Get(key Key, policy Policy) (Bins, error) {
	cmd := NewGetCommand(key, policy)
	if err := execute(c.cluster, cmd, policy); err != nil {
		return nil, err
	}
	return cmd.Bins, nil
}

func (c *Client) Put(key Key, bins Bins, policy WritePolicy) error {
	cmd := NewPutCommand(key, bins, policy)
	return execute(c.cluster, cmd, policy.Policy)
}

func (c *Client) Delete(key Key, policy Policy) error {
	cmd := NewDeleteCommand(key, policy)
	return execute(c.cluster, cmd, policy)
}

func (c *Client) Exists(key Key, policy Policy) (bool, error) {
	cmd := NewExistsCommand(key, policy)
	if err := execute(c.cluster, cmd, policy); err != nil {
		return false, err
	}
	return cmd.Exists, nil
}

func (c *Client) Touch(key Key, policy WritePolicy) error {
	cmd := NewTouchCommand(key, policy)
	return execute(c.cluster, cmd, policy.Policy)
}
