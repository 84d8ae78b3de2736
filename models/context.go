package models

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/mux"

	e "github.com/microcosm-cc/appstore/errors"
)

// Context wraps one request/response pair and carries the route variables
// and helpers the controllers need
type Context struct {
	Request        *http.Request
	ResponseWriter http.ResponseWriter
	RouteVars      map[string]string
	StartTime      time.Time
	IP             net.IP
}

// StandardResponse is the boilerplate that wraps every JSON response
type StandardResponse struct {
	Context string      `json:"context"`
	Status  int         `json:"status"`
	Data    interface{} `json:"data"`
	Errors  []string    `json:"error"`
}

// MakeContext creates the Context for this request
func MakeContext(
	request *http.Request,
	responseWriter http.ResponseWriter,
) *Context {

	c := new(Context)
	c.Request = request
	c.ResponseWriter = responseWriter
	c.RouteVars = mux.Vars(request)
	c.StartTime = time.Now()
	c.IP = GetRequestIP(request)

	return c
}

// GetRequestIP returns the IP address of the client
func GetRequestIP(request *http.Request) net.IP {
	host, _, _ := net.SplitHostPort(request.RemoteAddr)
	return net.ParseIP(host)
}

// GetHTTPMethod returns the HTTP method of this request
func (c *Context) GetHTTPMethod() string {
	return strings.ToUpper(c.Request.Method)
}

// GetStoreName returns the {name} route variable
func (c *Context) GetStoreName() string {
	return c.RouteVars["name"]
}

// GetItemID returns the {id} route variable as an int64
func (c *Context) GetItemID() (int64, int, error) {
	id, exists := c.RouteVars["id"]
	if !exists {
		return 0, http.StatusBadRequest,
			fmt.Errorf("item id not determinable from URL: %s", c.RouteVars)
	}

	itemID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, http.StatusBadRequest, e.New(
			"context.GetItemID",
			e.UnexpectedType,
			fmt.Sprintf("the supplied id ('%s') is not a number", id),
		)
	}

	return itemID, http.StatusOK, nil
}

// GetBody reads and returns the request body
func (c *Context) GetBody() ([]byte, int, error) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, http.StatusBadRequest,
			fmt.Errorf("could not read the request body: %v", err)
	}

	return body, http.StatusOK, nil
}

// Respond marshals and writes the standard response envelope
func (c *Context) Respond(
	data interface{},
	statusCode int,
	errors []string,
) error {

	obj := StandardResponse{
		Context: c.Request.URL.Query().Get("context"),
		Status:  statusCode,
		Data:    data,
		Errors:  errors,
	}

	// Prevent content type detection, a.k.a. sniffing
	c.ResponseWriter.Header().Set("Content-Type", "application/json")
	c.ResponseWriter.Header().Set("Access-Control-Allow-Origin", "*")

	output, err := json.Marshal(obj)
	if err != nil {
		http.Error(c.ResponseWriter, err.Error(), http.StatusInternalServerError)
		return err
	}

	// Prevent chunking
	c.ResponseWriter.Header().Set("Content-Length", strconv.Itoa(len(output)))

	return c.WriteResponse(output, statusCode)
}

// WriteResponse ultimately does the job of writing the response
func (c *Context) WriteResponse(output []byte, statusCode int) error {

	// Set status and write (finalise) all headers
	c.ResponseWriter.WriteHeader(statusCode)

	// HEAD requests return no body and are used to check headers for cache
	// invalidation functions
	if c.GetHTTPMethod() == "HEAD" {
		return nil
	}

	_, err := c.ResponseWriter.Write(output)

	// We only log at error severity when an error is not the result of the
	// client disconnecting. "broken pipe" is a syscall.EPIPE error that
	// indicates client disconnection.
	if err != nil {
		opErr, ok := err.(*net.OpError)
		if !ok || opErr.Err != syscall.EPIPE {
			glog.Errorf(
				"Error writing %s response to %s : %+v\n",
				c.GetHTTPMethod(),
				c.Request.URL.String(),
				err,
			)
		} else {
			glog.Warningf(
				"Error writing %s response to %s : %+v\n",
				c.GetHTTPMethod(),
				c.Request.URL.String(),
				err,
			)
		}
		return err
	}

	return nil
}

// RespondWithOptions responds to an OPTIONS request with the methods this
// resource allows
func (c *Context) RespondWithOptions(options []string) error {
	c.ResponseWriter.Header().Set("Allow", strings.Join(options, ","))
	c.ResponseWriter.Header().Set("Content-Length", "0")
	c.ResponseWriter.WriteHeader(http.StatusOK)
	return nil
}

// RespondWithStatus responds with a custom status code and an empty
// StandardResponse struct
func (c *Context) RespondWithStatus(statusCode int) error {
	return c.Respond(nil, statusCode, nil)
}

// RespondWithError responds with the specified HTTP status code defined in
// RFC 2616 and adds the status description to the errors list
func (c *Context) RespondWithError(statusCode int) error {
	return c.RespondWithErrorMessage(http.StatusText(statusCode), statusCode)
}

// RespondWithErrorMessage responds with a custom code and an error message
func (c *Context) RespondWithErrorMessage(
	message string,
	statusCode int,
) error {

	return c.Respond(nil, statusCode, []string{message})
}

// RespondWithErrorDetail responds with a detailed error code and message in
// the "data" object
func (c *Context) RespondWithErrorDetail(err error, statusCode int) error {
	return c.Respond(err, statusCode, []string{err.Error()})
}

// RespondWithData responds with the specified data
func (c *Context) RespondWithData(data interface{}) error {
	return c.Respond(data, http.StatusOK, nil)
}

// RespondWithOK responds with OK status (200) and no data
func (c *Context) RespondWithOK() error {
	return c.RespondWithData(nil)
}

// RespondWithNotFound responds with 404 Not Found
func (c *Context) RespondWithNotFound() error {
	return c.RespondWithError(http.StatusNotFound)
}
