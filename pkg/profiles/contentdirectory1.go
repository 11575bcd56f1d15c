package profiles

import (
	"context"
	"strconv"

	"github.com/katoemba/upnp-go/pkg/soap"
	"github.com/katoemba/upnp-go/pkg/upnp"
)

// ContentDirectory1 is the typed profile for ContentDirectory:1 media
// servers.
type ContentDirectory1 struct {
	*upnp.Service
}

// Browse flags.
const (
	BrowseMetadata       = "BrowseMetadata"
	BrowseDirectChildren = "BrowseDirectChildren"
)

// BrowseResult is the response of Browse and Search. Result holds the
// DIDL-Lite document as text.
type BrowseResult struct {
	Result         string `xml:"Result"`
	NumberReturned uint32 `xml:"NumberReturned"`
	TotalMatches   uint32 `xml:"TotalMatches"`
	UpdateID       uint32 `xml:"UpdateID"`
}

// Browse lists a container's children (BrowseDirectChildren) or an
// object's metadata (BrowseMetadata). ObjectID "0" is the root container.
func (s *ContentDirectory1) Browse(ctx context.Context, objectID, browseFlag, filter string, startingIndex, requestedCount uint32, sortCriteria string) (*BrowseResult, error) {
	var result BrowseResult
	err := s.PostWithResult(ctx, "Browse", []soap.Arg{
		{Name: "ObjectID", Value: objectID},
		{Name: "BrowseFlag", Value: browseFlag},
		{Name: "Filter", Value: filter},
		{Name: "StartingIndex", Value: strconv.FormatUint(uint64(startingIndex), 10)},
		{Name: "RequestedCount", Value: strconv.FormatUint(uint64(requestedCount), 10)},
		{Name: "SortCriteria", Value: sortCriteria},
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Search queries a container with the server's search criteria syntax.
func (s *ContentDirectory1) Search(ctx context.Context, containerID, searchCriteria, filter string, startingIndex, requestedCount uint32, sortCriteria string) (*BrowseResult, error) {
	var result BrowseResult
	err := s.PostWithResult(ctx, "Search", []soap.Arg{
		{Name: "ContainerID", Value: containerID},
		{Name: "SearchCriteria", Value: searchCriteria},
		{Name: "Filter", Value: filter},
		{Name: "StartingIndex", Value: strconv.FormatUint(uint64(startingIndex), 10)},
		{Name: "RequestedCount", Value: strconv.FormatUint(uint64(requestedCount), 10)},
		{Name: "SortCriteria", Value: sortCriteria},
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GetSearchCapabilities returns the comma separated search capabilities.
func (s *ContentDirectory1) GetSearchCapabilities(ctx context.Context) (string, error) {
	var result struct {
		SearchCaps string `xml:"SearchCaps"`
	}
	err := s.PostWithResult(ctx, "GetSearchCapabilities", nil, &result)
	return result.SearchCaps, err
}

// GetSortCapabilities returns the comma separated sort capabilities.
func (s *ContentDirectory1) GetSortCapabilities(ctx context.Context) (string, error) {
	var result struct {
		SortCaps string `xml:"SortCaps"`
	}
	err := s.PostWithResult(ctx, "GetSortCapabilities", nil, &result)
	return result.SortCaps, err
}

// GetSystemUpdateID returns the server's content generation counter.
func (s *ContentDirectory1) GetSystemUpdateID(ctx context.Context) (uint32, error) {
	var result struct {
		Id uint32 `xml:"Id"`
	}
	err := s.PostWithResult(ctx, "GetSystemUpdateID", nil, &result)
	return result.Id, err
}

var _ upnp.TypedService = (*ContentDirectory1)(nil)
