package apiv1

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"dtw/pkg/vcerror"
)

// ExportReply carries a spreadsheet of every issued credential.
type ExportReply struct {
	Filename    string
	ContentType string
	Data        []byte
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Export renders the credential register as an xlsx workbook for audit and
// reporting.
func (c *Client) Export(ctx context.Context) (*ExportReply, error) {
	ctx, span := c.tracer.Start(ctx, "apiv1:Export")
	defer span.End()

	docs, err := c.credentialStore.All(ctx)
	if err != nil {
		c.log.Error(err, "credential export query failed")
		return nil, vcerror.New(vcerror.ErrDatabaseOperationError, "credential export failed")
	}

	workbook := excelize.NewFile()
	defer workbook.Close()

	const sheet = "Credentials"
	if err := workbook.SetSheetName("Sheet1", sheet); err != nil {
		return nil, c.exportError(err)
	}

	headers := []string{"CID", "Credential Type", "Issuer DID", "Holder DID", "State", "Status List", "Status Index", "Issued At", "Expires At"}
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, c.exportError(err)
		}
		if err := workbook.SetCellValue(sheet, cell, header); err != nil {
			return nil, c.exportError(err)
		}
	}

	for row, doc := range docs {
		values := []any{
			doc.CID,
			doc.CredentialType,
			doc.IssuerDID,
			doc.HolderDID,
			string(doc.State),
			doc.StatusListID,
			doc.StatusListIndex,
			doc.IssuedAt.UTC().Format(time.RFC3339),
			doc.ExpiresAt.UTC().Format(time.RFC3339),
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, c.exportError(err)
			}
			if err := workbook.SetCellValue(sheet, cell, value); err != nil {
				return nil, c.exportError(err)
			}
		}
	}

	buf, err := workbook.WriteToBuffer()
	if err != nil {
		return nil, c.exportError(err)
	}

	return &ExportReply{
		Filename:    fmt.Sprintf("credentials_%s.xlsx", c.clock().UTC().Format("20060102_150405")),
		ContentType: xlsxContentType,
		Data:        buf.Bytes(),
	}, nil
}

func (c *Client) exportError(err error) error {
	c.log.Error(err, "credential export failed")
	return vcerror.New(vcerror.ErrIssuerSystemError, "credential export failed")
}
