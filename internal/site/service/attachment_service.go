package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/entity"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/repository"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/sse"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/storage"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/workflow"
	"go.uber.org/zap"
)

// CodeTooLarge marks a file over the upload limit.
const CodeTooLarge = "TooLarge"

// UploadFile is one file of an attachment batch.
type UploadFile struct {
	Name        string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// UploadFailure 单个文件上传失败
type UploadFailure struct {
	Name    string `json:"name"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// UploadResult lists the stored attachments and the files that failed.
type UploadResult struct {
	Report   *entity.DailyReport `json:"report"`
	Uploaded []entity.Attachment `json:"uploaded"`
	Failed   []UploadFailure     `json:"failed"`
}

// AttachmentService 日报附件服务
type AttachmentService struct {
	*base
	blobs     storage.BlobStore
	maxUpload int64
}

// NewAttachmentService 创建附件服务. maxUpload <= 0 means no limit.
func NewAttachmentService(b *base, blobs storage.BlobStore, maxUpload int64) *AttachmentService {
	return &AttachmentService{base: b, blobs: blobs, maxUpload: maxUpload}
}

// Upload stores files for the report of (swo, date). Each file is put
// independently; successes are kept on the report even when others fail.
// A supervisor uploading before the report exists gets a Draft.
func (s *AttachmentService) Upload(ctx context.Context, actorID, swoID, date string, files []UploadFile) (*UploadResult, error) {
	if len(files) == 0 {
		return nil, workflow.Invalid("files", "at least one file is required")
	}
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	swo, p, err := s.swo(ctx, swoID)
	if err != nil {
		return nil, err
	}
	date = strings.TrimSpace(date)
	r, created, err := s.editableReport(ctx, actor, p, swo, date)
	if err != nil {
		return nil, err
	}

	res := &UploadResult{Report: r, Uploaded: []entity.Attachment{}, Failed: []UploadFailure{}}
	for _, f := range files {
		att, err := s.put(ctx, swo.ID, date, f)
		if err != nil {
			s.logger.Warn("attachment upload failed",
				zap.String("swo_id", swo.ID),
				zap.String("date", date),
				zap.String("file", f.Name),
				zap.Error(err))
			res.Failed = append(res.Failed, UploadFailure{Name: f.Name, Code: storage.ErrorCode(err), Message: err.Error()})
			continue
		}
		res.Uploaded = append(res.Uploaded, *att)
	}
	if len(res.Uploaded) == 0 {
		if created {
			res.Report = nil
		}
		return res, nil
	}

	r.Attachments = append(r.Attachments, res.Uploaded...)
	r.UpdatedAt = s.now()
	if created {
		err = s.stores.Reports.Create(ctx, r)
	} else {
		err = s.stores.Reports.Update(ctx, r)
	}
	if err != nil {
		return nil, writeErr("save attachments", err)
	}
	s.record(ctx, actor, entity.LogEntityReport, r.ID, reportCode(swo, r), "upload_attachments", "", "",
		fmt.Sprintf("%d uploaded, %d failed", len(res.Uploaded), len(res.Failed)))
	s.publish(ctx, sse.CollectionReports, r.ID, sse.ActionUpdate, r.ProjectID)
	return res, nil
}

// Remove deletes one attachment from a report and the blob store.
func (s *AttachmentService) Remove(ctx context.Context, actorID, reportID, key string) (*entity.DailyReport, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	r, err := s.stores.Reports.FindByID(ctx, reportID)
	if err != nil {
		return nil, notFound(err, "report "+reportID)
	}
	swo, p, err := s.swo(ctx, r.SWOID)
	if err != nil {
		return nil, err
	}
	if err := workflow.EnsureUnlocked(actor, p); err != nil {
		return nil, err
	}
	if !workflow.CanEditReport(actor, swo, r, s.now()) {
		return nil, workflow.ErrForbidden
	}

	kept := r.Attachments[:0:0]
	for _, a := range r.Attachments {
		if a.Key != key {
			kept = append(kept, a)
		}
	}
	if len(kept) == len(r.Attachments) {
		return nil, fmt.Errorf("%w: attachment %s", workflow.ErrRecordNotFound, key)
	}
	r.Attachments = kept
	r.UpdatedAt = s.now()
	if err := s.stores.Reports.Update(ctx, r); err != nil {
		return nil, writeErr("remove attachment", err)
	}
	// the report no longer references key; a failed delete leaves an orphan blob
	if err := s.blobs.Delete(ctx, key); err != nil {
		s.logger.Warn("delete attachment blob failed",
			zap.String("report_id", r.ID),
			zap.String("key", key),
			zap.String("code", storage.ErrorCode(err)),
			zap.Error(err))
	}
	s.record(ctx, actor, entity.LogEntityReport, r.ID, reportCode(swo, r), "remove_attachment", "", "", key)
	s.publish(ctx, sse.CollectionReports, r.ID, sse.ActionUpdate, r.ProjectID)
	return r, nil
}

// editableReport returns the report the actor may attach files to, creating
// an unsaved Draft when none exists yet.
func (s *AttachmentService) editableReport(ctx context.Context, actor *entity.User, p *entity.Project, swo *entity.SiteWorkOrder, date string) (*entity.DailyReport, bool, error) {
	r, err := s.stores.Reports.FindBySWOAndDate(ctx, swo.ID, date)
	if errors.Is(err, repository.ErrNotFound) {
		target := workflow.ReportTarget{Project: p, SWO: swo}
		draft, err := workflow.SaveDraft(actor, target, date, workflow.ReportContent{}, s.now())
		if err != nil {
			return nil, false, err
		}
		return draft, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	if err := workflow.EnsureUnlocked(actor, p); err != nil {
		return nil, false, err
	}
	if !workflow.CanEditReport(actor, swo, r, s.now()) {
		return nil, false, workflow.ErrForbidden
	}
	return r, false, nil
}

func (s *AttachmentService) put(ctx context.Context, swoID, date string, f UploadFile) (*entity.Attachment, error) {
	name := storage.CleanFilename(f.Name)
	if s.maxUpload > 0 && f.Size > s.maxUpload {
		return nil, &storage.Error{Code: CodeTooLarge, Key: name, Err: fmt.Errorf("%d bytes exceeds limit of %d", f.Size, s.maxUpload)}
	}
	rc, err := f.Open()
	if err != nil {
		return nil, &storage.Error{Code: storage.CodeIO, Key: name, Err: err}
	}
	defer rc.Close()

	now := s.now()
	key := storage.AttachmentKey(swoID, date, now, name)
	if err := s.blobs.Put(ctx, key, rc, f.Size, f.ContentType); err != nil {
		return nil, err
	}
	url, err := s.blobs.URL(ctx, key)
	if err != nil {
		return nil, err
	}
	return &entity.Attachment{
		Name:        name,
		Key:         key,
		URL:         url,
		Size:        f.Size,
		ContentType: f.ContentType,
		UploadedAt:  now,
	}, nil
}
