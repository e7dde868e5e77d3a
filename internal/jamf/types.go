package jamf

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// id accepts both JSON numbers and strings. Jamf returns numeric user ids
// and string class uuids.
type id string

func (i *id) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*i = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*i = id(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*i = id(n.String())
	return nil
}

func (i id) String() string { return string(i) }

// idList is a membership list. Elements may be bare ids or objects with an
// id field. A missing field decodes to nil, an empty array to an empty list.
type idList []string

func (l *idList) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*l = nil
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make([]string, 0, len(raw))
	for _, elem := range raw {
		elem = bytes.TrimSpace(elem)
		if len(elem) > 0 && elem[0] == '{' {
			var obj struct {
				ID id `json:"id"`
			}
			if err := json.Unmarshal(elem, &obj); err != nil {
				return err
			}
			out = append(out, obj.ID.String())
			continue
		}
		var v id
		if err := json.Unmarshal(elem, &v); err != nil {
			return err
		}
		out = append(out, v.String())
	}
	*l = out
	return nil
}

type user struct {
	ID         id       `json:"id"`
	Username   string   `json:"username"`
	Email      string   `json:"email"`
	FirstName  string   `json:"firstName"`
	LastName   string   `json:"lastName"`
	Name       string   `json:"name"`
	Notes      string   `json:"notes"`
	LocationID id       `json:"locationId"`
	Groups     []string `json:"groups"`
}

type class struct {
	UUID        id     `json:"uuid"`
	Name        string `json:"name"`
	Description string `json:"description"`
	LocationID  id     `json:"locationId"`
	Students    idList `json:"students"`
	Teachers    idList `json:"teachers"`
}

type location struct {
	ID   id     `json:"id"`
	Name string `json:"name"`
}

type usersResponse struct {
	Users []user `json:"users"`
}

type classesResponse struct {
	Classes []class `json:"classes"`
}

type locationsResponse struct {
	Locations []location `json:"locations"`
}

// mutationResponse covers the bodies of POST and PUT. Users answer with an
// id, classes with a uuid.
type mutationResponse struct {
	ID   id `json:"id"`
	UUID id `json:"uuid"`
}

func (r mutationResponse) identifier() string {
	if r.UUID != "" {
		return r.UUID.String()
	}
	return r.ID.String()
}

// userRequest is the body of POST/PUT users.
type userRequest struct {
	Username   string   `json:"username"`
	Password   string   `json:"password"`
	Email      string   `json:"email"`
	FirstName  string   `json:"firstName"`
	LastName   string   `json:"lastName"`
	Name       string   `json:"name,omitempty"`
	MemberOf   []string `json:"memberOf"`
	LocationID string   `json:"locationId"`
	Notes      string   `json:"notes,omitempty"`
}

// classRequest is the body of POST/PUT classes.
type classRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	LocationID  string  `json:"locationId"`
	Students    []int64 `json:"students"`
	Teachers    []int64 `json:"teachers"`
}

// numericIDs converts user ids for class bodies. Non-numeric ids are
// returned separately so the caller can reject them.
func numericIDs(ids []string) ([]int64, []string) {
	out := make([]int64, 0, len(ids))
	var bad []string
	for _, s := range ids {
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			bad = append(bad, s)
			continue
		}
		out = append(out, n)
	}
	return out, bad
}
