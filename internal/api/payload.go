package api

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	xerrors "QVeritas/internal/errors"
)

// decodePayload 将请求中的 payload 字段转换为字节：字符串按 encoding 解码，
// 其他 JSON 值原样使用。
func decodePayload(raw json.RawMessage, encoding string) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "payload 不能为空")
	}
	if trimmed[0] != '"' {
		if strings.TrimSpace(encoding) != "" && !strings.EqualFold(encoding, "json") {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "payload_encoding 仅适用于字符串载荷")
		}
		return append([]byte(nil), trimmed...), nil
	}

	var text string
	if err := json.Unmarshal(trimmed, &text); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "payload 解析失败")
	}
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "utf8", "utf-8", "text":
		return []byte(text), nil
	case "hex":
		data, err := hex.DecodeString(text)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "payload 不是合法的十六进制")
		}
		return data, nil
	case "base64":
		data, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "payload 不是合法的 base64")
		}
		return data, nil
	default:
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "不支持的 payload_encoding: "+encoding)
	}
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "请求体过大")
		}
		if errors.Is(err, io.EOF) {
			return xerrors.New(xerrors.CodeInvalidArgument, "请求体为空")
		}
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "请求体不是合法的 JSON")
	}
	return nil
}

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := xerrors.HTTPStatusOf(err)
	if status == 0 {
		status = http.StatusInternalServerError
	}
	body := errorBody{Code: string(xerrors.CodeOf(err)), Message: err.Error()}
	if e, ok := xerrors.From(err); ok {
		if msg := e.Message(); msg != "" {
			body.Message = msg
		} else {
			body.Message = xerrors.AttributesOf(e.Code()).Message
		}
		body.Details = e.Metadata()
	}
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, body)
}
