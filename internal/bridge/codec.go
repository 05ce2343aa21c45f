package bridge

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// errBadJSON marks a well-framed message whose body is not valid JSON. The
// stream is still in sync after it.
var errBadJSON = errors.New("error parsing message")

// codec reads and writes Content-Length framed JSON-RPC messages.
type codec struct {
	reader  *bufio.Reader
	writer  io.Writer
	writeMu sync.Mutex
}

func newCodec(r io.Reader, w io.Writer) *codec {
	return &codec{reader: bufio.NewReader(r), writer: w}
}

// readMessage reads a JSON-RPC message from the input stream.
func (c *codec) readMessage() (*JSONRPCMessage, error) {
	var contentLength int
	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			break
		}

		if strings.HasPrefix(line, "Content-Length: ") {
			lengthStr := strings.TrimPrefix(line, "Content-Length: ")
			contentLength, err = strconv.Atoi(lengthStr)
			if err != nil {
				return nil, fmt.Errorf("invalid Content-Length: %w", err)
			}
		}
	}

	if contentLength <= 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(c.reader, body); err != nil {
		return nil, fmt.Errorf("error reading body: %w", err)
	}

	var msg JSONRPCMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("%w: %w", errBadJSON, err)
	}

	return &msg, nil
}

// writeMessage writes a JSON-RPC message to the output stream.
func (c *codec) writeMessage(msg *JSONRPCMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("error marshaling message: %w", err)
	}

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(body))
	if _, err := io.WriteString(c.writer, header); err != nil {
		return err
	}
	_, err = c.writer.Write(body)
	return err
}

// sendResponse writes a response carrying either result or rpcErr.
func (c *codec) sendResponse(id *json.RawMessage, result any, rpcErr *JSONRPCError) error {
	msg := JSONRPCMessage{
		JSONRPC: "2.0",
		ID:      id,
	}
	if id == nil {
		null := json.RawMessage("null")
		msg.ID = &null
	}

	if rpcErr != nil {
		msg.Error = rpcErr
	} else {
		resultBytes, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("error marshaling result: %w", err)
		}
		msg.Result = resultBytes
	}

	return c.writeMessage(&msg)
}

// sendRequest writes a request with a numeric id.
func (c *codec) sendRequest(id int64, method string, params any) error {
	raw := json.RawMessage(strconv.FormatInt(id, 10))
	msg := JSONRPCMessage{
		JSONRPC: "2.0",
		ID:      &raw,
		Method:  method,
	}
	if params != nil {
		paramsBytes, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("error marshaling params: %w", err)
		}
		msg.Params = paramsBytes
	}
	return c.writeMessage(&msg)
}
