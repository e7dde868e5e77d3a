package mapping

import pkgerrors "github.com/ervinkurbegovic/jamfsync/pkg/errors"

// ErrNoArchive is returned by Restore when nothing has been archived yet.
var ErrNoArchive error = pkgerrors.NewNotFoundError("mapping archive", "previous")
