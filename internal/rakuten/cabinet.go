package rakuten

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"image"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	apperrors "github.com/utafrali/RelistGo/pkg/errors"

	// Cabinet uploads are validated by decoding the image header, so
	// every format the marketplace accepts must be registered.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// Cabinet upload limits enforced client-side; RMS rejects violations
// with opaque resultCodes, so failing fast gives better errors.
const (
	MaxCabinetFileBytes = 2 << 20
	MaxCabinetDimension = 3840
)

var allowedCabinetExts = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".png":  {},
	".tiff": {},
	".tif":  {},
	".bmp":  {},
}

// CabinetFolder is one folder of the shop's image cabinet.
type CabinetFolder struct {
	FolderID      int    `xml:"FolderId"`
	FolderName    string `xml:"FolderName"`
	DirectoryName string `xml:"DirectoryName"`
	FileCount     int    `xml:"FileCount"`
}

type cabinetStatus struct {
	InterfaceID  string `xml:"interfaceId"`
	SystemStatus string `xml:"systemStatus"`
	Message      string `xml:"message"`
	RequestID    string `xml:"requestId"`
}

type cabinetResponse struct {
	XMLName      xml.Name            `xml:"result"`
	Status       cabinetStatus       `xml:"status"`
	FolderInsert *folderInsertResult `xml:"cabinetFolderInsertResult"`
	FileInsert   *fileInsertResult   `xml:"cabinetFileInsertResult"`
	FoldersGet   *foldersGetResult   `xml:"cabinetFoldersGetResult"`
}

type folderInsertResult struct {
	ResultCode int `xml:"resultCode"`
	FolderID   int `xml:"FolderId"`
}

type fileInsertResult struct {
	ResultCode int `xml:"resultCode"`
	FileID     int `xml:"FileId"`
}

type foldersGetResult struct {
	ResultCode     int             `xml:"resultCode"`
	FolderAllCount int             `xml:"folderAllCount"`
	FolderCount    int             `xml:"folderCount"`
	Folders        []CabinetFolder `xml:"folders>folder"`
}

type folderInsertXML struct {
	XMLName xml.Name          `xml:"request"`
	Request folderInsertInner `xml:"folderInsertRequest"`
}

type folderInsertInner struct {
	Folder folderSpecXML `xml:"folder"`
}

type folderSpecXML struct {
	FolderName    string `xml:"folderName"`
	DirectoryName string `xml:"directoryName,omitempty"`
	UpperFolderID *int   `xml:"upperFolderId,omitempty"`
}

type fileInsertXML struct {
	XMLName xml.Name        `xml:"request"`
	Request fileInsertInner `xml:"fileInsertRequest"`
}

type fileInsertInner struct {
	File fileSpecXML `xml:"file"`
}

type fileSpecXML struct {
	FileName  string `xml:"fileName"`
	FolderID  int    `xml:"folderId"`
	FilePath  string `xml:"filePath,omitempty"`
	OverWrite bool   `xml:"overWrite"`
}

// FolderID returns the folder id of a successful folder insert.
func (r *Result) FolderID() (int, bool) {
	id, ok := r.Data["folderId"].(int)
	return id, ok
}

// FileID returns the file id of a successful file insert.
func (r *Result) FileID() (int, bool) {
	id, ok := r.Data["fileId"].(int)
	return id, ok
}

// Folders returns the folder list of a successful folder search.
func (r *Result) Folders() []CabinetFolder {
	folders, _ := r.Data["folders"].([]CabinetFolder)
	return folders
}

// CabinetCreateFolder creates an image cabinet folder and returns its
// id in the result data.
func (c *Client) CabinetCreateFolder(ctx context.Context, folderName, directoryName string, upperFolderID *int) *Result {
	if strings.TrimSpace(folderName) == "" {
		return invalidResult("folder name is required")
	}

	var reqXML folderInsertXML
	reqXML.Request.Folder.FolderName = folderName
	reqXML.Request.Folder.DirectoryName = directoryName
	reqXML.Request.Folder.UpperFolderID = upperFolderID
	body, err := marshalCabinetXML(reqXML)
	if err != nil {
		return &Result{Err: apperrors.Internal(err), ErrorText: err.Error()}
	}

	result := c.do(ctx, c.cabinet, http.MethodPost, "/es/1.0/cabinet/folder/insert", "text/xml; charset=utf-8", body, http.StatusOK)
	if !result.Success {
		return result
	}

	parsed, ok := c.parseCabinetResponse(result)
	if !ok {
		return result
	}
	if parsed.FolderInsert == nil || parsed.FolderInsert.ResultCode != 0 {
		markCabinetFailure(result, parsed, resultCodeOf(parsed))
		return result
	}
	result.Data = map[string]any{"folderId": parsed.FolderInsert.FolderID}
	return result
}

// CabinetSearchFolders pages through the cabinet folder list. offset is
// 1-based; limit caps at 100 per the RMS contract.
func (c *Client) CabinetSearchFolders(ctx context.Context, offset, limit int) *Result {
	if offset < 1 {
		offset = 1
	}
	if limit < 1 || limit > 100 {
		limit = 100
	}
	path := "/es/1.0/cabinet/folders/get?offset=" + strconv.Itoa(offset) + "&limit=" + strconv.Itoa(limit)
	result := c.do(ctx, c.cabinet, http.MethodGet, path, "", nil, http.StatusOK)
	if !result.Success {
		return result
	}

	parsed, ok := c.parseCabinetResponse(result)
	if !ok {
		return result
	}
	if parsed.FoldersGet == nil || parsed.FoldersGet.ResultCode != 0 {
		markCabinetFailure(result, parsed, resultCodeOf(parsed))
		return result
	}
	result.Data = map[string]any{
		"folders":        parsed.FoldersGet.Folders,
		"folderAllCount": parsed.FoldersGet.FolderAllCount,
	}
	return result
}

// CabinetUploadFile uploads one image into a cabinet folder. The file
// is validated locally first: size, extension and pixel dimensions.
func (c *Client) CabinetUploadFile(ctx context.Context, file []byte, fileName string, folderID int, filePathName string, overwrite bool) *Result {
	if err := ValidateCabinetImage(file, fileName); err != nil {
		return &Result{Err: err, ErrorText: err.Error()}
	}
	if folderID <= 0 {
		return invalidResult("folder id is required")
	}

	var reqXML fileInsertXML
	reqXML.Request.File.FileName = fileName
	reqXML.Request.File.FolderID = folderID
	reqXML.Request.File.FilePath = filePathName
	reqXML.Request.File.OverWrite = overwrite
	xmlBody, err := marshalCabinetXML(reqXML)
	if err != nil {
		return &Result{Err: apperrors.Internal(err), ErrorText: err.Error()}
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("xml", string(xmlBody)); err != nil {
		return &Result{Err: apperrors.Internal(err), ErrorText: err.Error()}
	}
	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		return &Result{Err: apperrors.Internal(err), ErrorText: err.Error()}
	}
	if _, err := part.Write(file); err != nil {
		return &Result{Err: apperrors.Internal(err), ErrorText: err.Error()}
	}
	if err := w.Close(); err != nil {
		return &Result{Err: apperrors.Internal(err), ErrorText: err.Error()}
	}

	result := c.do(ctx, c.cabinet, http.MethodPost, "/es/1.0/cabinet/file/insert", w.FormDataContentType(), buf.Bytes(), http.StatusOK)
	if !result.Success {
		return result
	}

	parsed, ok := c.parseCabinetResponse(result)
	if !ok {
		return result
	}
	if parsed.FileInsert == nil || parsed.FileInsert.ResultCode != 0 {
		markCabinetFailure(result, parsed, resultCodeOf(parsed))
		return result
	}
	result.Data = map[string]any{"fileId": parsed.FileInsert.FileID}
	return result
}

// ValidateCabinetImage checks the constraints RMS enforces on cabinet
// uploads: max 2MB, allowed extension, max 3840x3840 pixels.
func ValidateCabinetImage(file []byte, fileName string) error {
	if len(file) == 0 {
		return apperrors.InvalidInput("image file is empty")
	}
	if len(file) > MaxCabinetFileBytes {
		return apperrors.InvalidInput(fmt.Sprintf("image %s exceeds the 2MB cabinet limit (%d bytes)", fileName, len(file)))
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	if _, ok := allowedCabinetExts[ext]; !ok {
		return apperrors.InvalidInput(fmt.Sprintf("image extension %q is not accepted by the cabinet", ext))
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(file))
	if err != nil {
		return apperrors.InvalidInput(fmt.Sprintf("image %s is not decodable: %v", fileName, err))
	}
	if cfg.Width > MaxCabinetDimension || cfg.Height > MaxCabinetDimension {
		return apperrors.InvalidInput(fmt.Sprintf("image %s is %dx%d, above the %d pixel cabinet limit", fileName, cfg.Width, cfg.Height, MaxCabinetDimension))
	}
	return nil
}

func marshalCabinetXML(v any) ([]byte, error) {
	body, err := xml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal cabinet request: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

// parseCabinetResponse decodes the XML body kept on the result. On
// parse failure the result is flipped to a failure in place.
func (c *Client) parseCabinetResponse(result *Result) (*cabinetResponse, bool) {
	var parsed cabinetResponse
	if err := xml.Unmarshal(result.raw, &parsed); err != nil {
		result.Success = false
		result.ErrorText = "unparseable cabinet response"
		result.Err = apperrors.Upstream(rmsService, result.StatusCode, result.ErrorText)
		return nil, false
	}
	if parsed.Status.SystemStatus != "" && parsed.Status.SystemStatus != "OK" {
		result.Success = false
		result.ErrorText = fmt.Sprintf("cabinet %s: %s", parsed.Status.SystemStatus, parsed.Status.Message)
		result.Err = apperrors.Upstream(rmsService, result.StatusCode, result.ErrorText)
		return nil, false
	}
	return &parsed, true
}

func markCabinetFailure(result *Result, parsed *cabinetResponse, resultCode int) {
	result.Success = false
	result.ErrorText = fmt.Sprintf("cabinet call failed with resultCode %d (%s)", resultCode, parsed.Status.Message)
	result.Err = apperrors.Upstream(rmsService, result.StatusCode, result.ErrorText)
}

func resultCodeOf(parsed *cabinetResponse) int {
	switch {
	case parsed.FolderInsert != nil:
		return parsed.FolderInsert.ResultCode
	case parsed.FileInsert != nil:
		return parsed.FileInsert.ResultCode
	case parsed.FoldersGet != nil:
		return parsed.FoldersGet.ResultCode
	default:
		return -1
	}
}
