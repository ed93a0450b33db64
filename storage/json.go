package storage

import (
	"context"
	"encoding/json"

	"xdao.co/trailproof/cidutil"
	"xdao.co/trailproof/errdefs"
)

// Upload stores b and returns its CID string.
func Upload(ctx context.Context, cas CAS, b []byte) (string, error) {
	id, err := cas.Put(ctx, b)
	if err != nil {
		return "", errdefs.Wrap(errdefs.KindNetwork, "TP-CAS-001", "upload", err)
	}
	return cidutil.String(id), nil
}

// UploadJSON marshals v and uploads it.
func UploadJSON(ctx context.Context, cas CAS, v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", errdefs.Wrap(errdefs.KindInternal, "TP-CAS-002", "encode json", err)
	}
	return Upload(ctx, cas, b)
}

// Download fetches the object named by a CID string.
func Download(ctx context.Context, cas CAS, cidString string) ([]byte, error) {
	id, err := cidutil.Parse(cidString)
	if err != nil {
		return nil, err
	}
	b, err := cas.Get(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, errdefs.Wrap(errdefs.KindNotFound, "TP-CAS-003", "content "+cidString, err)
		}
		return nil, errdefs.Wrap(errdefs.KindNetwork, "TP-CAS-004", "download "+cidString, err)
	}
	return b, nil
}

// DownloadJSON fetches cidString and decodes it into v.
func DownloadJSON(ctx context.Context, cas CAS, cidString string, v any) error {
	b, err := Download(ctx, cas, cidString)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return errdefs.Wrap(errdefs.KindDecode, "TP-CAS-005", "content "+cidString+" is not JSON", err)
	}
	return nil
}

// DownloadJSONFromHex is DownloadJSON for a 0x-hex binary CID as stored on the ledger.
func DownloadJSONFromHex(ctx context.Context, cas CAS, hexCID string, v any) error {
	s, err := cidutil.HexToString(hexCID)
	if err != nil {
		return err
	}
	return DownloadJSON(ctx, cas, s, v)
}
