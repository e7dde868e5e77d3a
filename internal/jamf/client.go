// Package jamf talks to the Jamf School REST API. It snapshots users and
// classes as a directory and applies planned mutations to them.
package jamf

import (
	"context"
	"net/url"
	"strings"

	"github.com/ervinkurbegovic/jamfsync/internal/transport"
	"github.com/ervinkurbegovic/jamfsync/pkg/applier"
	"github.com/ervinkurbegovic/jamfsync/pkg/directory"
	"github.com/ervinkurbegovic/jamfsync/pkg/errors"
	"github.com/ervinkurbegovic/jamfsync/pkg/logging"
	"github.com/ervinkurbegovic/jamfsync/pkg/plan"
	"github.com/ervinkurbegovic/jamfsync/pkg/reconciler"
)

const (
	endpointUsers     = "users"
	endpointClasses   = "classes"
	endpointLocations = "locations"
)

// Client is a Jamf School directory.
type Client struct {
	http *transport.Client
	cfg  Config
}

var _ applier.Transport = (*Client)(nil)

// New creates a Client. Extra transport options are applied after the
// ones derived from cfg.
func New(cfg Config, opts ...transport.Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.PersonMarker == "" {
		cfg.PersonMarker = reconciler.DefaultPersonNotes
	}
	if cfg.GroupMarker == "" {
		cfg.GroupMarker = reconciler.DefaultGroupDescription
	}

	base := []transport.Option{
		transport.WithHeader("X-Server-Protocol-Version", ProtocolVersion),
		transport.WithTimeout(cfg.Timeout),
	}
	if cfg.MaxElapsed > 0 {
		base = append(base, transport.WithMaxElapsed(cfg.MaxElapsed))
	}
	auth := &transport.BasicAuth{Username: cfg.User, Password: cfg.Password}
	return &Client{
		http: transport.New(cfg.URL, auth, append(base, opts...)...),
		cfg:  cfg,
	}, nil
}

// LocationID returns the location the client is scoped to.
func (c *Client) LocationID() string { return c.cfg.LocationID }

// Snapshot lists the users and classes of the configured location.
func (c *Client) Snapshot(ctx context.Context) (*directory.Snapshot, error) {
	var users usersResponse
	if err := c.http.Get(ctx, endpointUsers, &users); err != nil {
		return nil, err
	}
	var classes classesResponse
	if err := c.http.Get(ctx, endpointClasses, &classes); err != nil {
		return nil, err
	}

	snap := &directory.Snapshot{
		People: make([]directory.Person, 0, len(users.Users)),
		Groups: make([]directory.Group, 0, len(classes.Classes)),
	}
	for _, u := range users.Users {
		if !c.inScope(u.LocationID.String()) {
			continue
		}
		snap.People = append(snap.People, c.person(u))
	}
	for _, cl := range classes.Classes {
		if !c.inScope(cl.LocationID.String()) {
			continue
		}
		snap.Groups = append(snap.Groups, c.group(cl))
	}

	logging.FromContext(ctx).Debug().
		Int("users", len(snap.People)).
		Int("classes", len(snap.Groups)).
		Str("location_id", c.cfg.LocationID).
		Msg("Fetched Jamf snapshot")
	return snap, nil
}

func (c *Client) inScope(locationID string) bool {
	return c.cfg.LocationID == "" || locationID == c.cfg.LocationID
}

func (c *Client) person(u user) directory.Person {
	key := u.Username
	if key == "" {
		key = u.Email
	}
	displayName := u.Name
	if displayName == "" {
		displayName = strings.TrimSpace(u.FirstName + " " + u.LastName)
	}
	return directory.Person{
		IdentityKey: directory.NormalizeKey(key),
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Email:       u.Email,
		Groups:      u.Groups,
		LocationID:  u.LocationID.String(),
		MirrorID:    u.ID.String(),
		DisplayName: displayName,
		Origin:      origin(u.Notes, c.cfg.PersonMarker),
	}
}

func (c *Client) group(cl class) directory.Group {
	g := directory.Group{
		Name:       cl.Name,
		LocationID: cl.LocationID.String(),
		MirrorID:   cl.UUID.String(),
		Origin:     origin(cl.Description, c.cfg.GroupMarker),
	}
	// Only report membership when the listing carried it.
	if cl.Students != nil || cl.Teachers != nil {
		g.StudentIDs = nonNil(cl.Students)
		g.TeacherIDs = nonNil(cl.Teachers)
	}
	return g
}

// origin reads the provenance marker. An empty note says nothing either way.
func origin(note, marker string) directory.Origin {
	switch strings.TrimSpace(note) {
	case "":
		return directory.OriginUnknown
	case marker:
		return directory.OriginSystemGenerated
	default:
		return directory.OriginManual
	}
}

// Create implements applier.Transport.
func (c *Client) Create(ctx context.Context, payload plan.Payload) (string, error) {
	path, body, err := c.request(payload)
	if err != nil {
		return "", err
	}
	var resp mutationResponse
	if err := c.http.Post(ctx, path, body, &resp); err != nil {
		return "", err
	}
	mirrorID := resp.identifier()
	if mirrorID == "" {
		return "", errors.NewTransportError("POST", path, 0, "response carried no id")
	}
	return mirrorID, nil
}

// Update implements applier.Transport.
func (c *Client) Update(ctx context.Context, mirrorID string, payload plan.Payload) (string, error) {
	path, body, err := c.request(payload)
	if err != nil {
		return "", err
	}
	path += "/" + url.PathEscape(mirrorID)
	var resp mutationResponse
	if err := c.http.Put(ctx, path, body, &resp); err != nil {
		return "", err
	}
	if returned := resp.identifier(); returned != "" {
		return returned, nil
	}
	return mirrorID, nil
}

// Delete implements applier.Transport.
func (c *Client) Delete(ctx context.Context, entity directory.EntityType, mirrorID string) error {
	path, err := collection(entity)
	if err != nil {
		return err
	}
	return c.http.Delete(ctx, path+"/"+url.PathEscape(mirrorID))
}

// request maps a plan payload to its collection and body.
func (c *Client) request(payload plan.Payload) (string, any, error) {
	switch p := payload.(type) {
	case *plan.PersonPayload:
		return endpointUsers, userRequest{
			Username:   p.Username,
			Email:      p.Email,
			FirstName:  p.FirstName,
			LastName:   p.LastName,
			Name:       p.DisplayName,
			MemberOf:   nonNil(p.MemberOf),
			LocationID: c.locationFor(p.LocationID),
			Notes:      p.Notes,
		}, nil
	case *plan.GroupPayload:
		students, badS := numericIDs(p.StudentIDs)
		teachers, badT := numericIDs(p.TeacherIDs)
		if bad := append(badS, badT...); len(bad) > 0 {
			return "", nil, &errors.ValidationError{
				Field:   "members",
				Value:   bad,
				Message: "class " + p.Name + " has non-numeric user ids",
			}
		}
		return endpointClasses, classRequest{
			Name:        p.Name,
			Description: p.Description,
			LocationID:  c.locationFor(p.LocationID),
			Students:    students,
			Teachers:    teachers,
		}, nil
	case nil:
		return "", nil, &errors.ValidationError{Field: "payload", Message: "cannot be nil"}
	default:
		return "", nil, &errors.ValidationError{Field: "payload", Value: payload.Entity(), Message: "unsupported payload"}
	}
}

func (c *Client) locationFor(locationID string) string {
	if locationID != "" {
		return locationID
	}
	return c.cfg.LocationID
}

func collection(entity directory.EntityType) (string, error) {
	switch entity {
	case directory.EntityPerson:
		return endpointUsers, nil
	case directory.EntityGroup:
		return endpointClasses, nil
	}
	return "", &errors.ValidationError{Field: "entity", Value: entity, Message: "unknown entity type"}
}

// ResolveLocation returns the id of the location called name.
func (c *Client) ResolveLocation(ctx context.Context, name string) (string, error) {
	var resp locationsResponse
	if err := c.http.Get(ctx, endpointLocations, &resp); err != nil {
		return "", err
	}
	for _, loc := range resp.Locations {
		if strings.EqualFold(strings.TrimSpace(loc.Name), strings.TrimSpace(name)) {
			return loc.ID.String(), nil
		}
	}
	return "", errors.NewNotFoundError("location", name)
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
