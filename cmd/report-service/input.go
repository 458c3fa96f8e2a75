package main

import (
	"context"

	"github.com/megcare/platform/pkg/common/logger"
	"github.com/megcare/platform/pkg/common/models"
	"github.com/megcare/platform/pkg/report"
)

// buildInput hydrates everything the assembly engine needs for one case.
// Missing document files degrade that document's analysis, never the
// whole report.
func (a *ReportApp) buildInput(ctx context.Context, c models.Case) (report.Input, error) {
	in := report.Input{Case: c}

	patient, err := a.cases.Patient(ctx, c.PatientID)
	if err != nil {
		return report.Input{}, err
	}
	in.Patient = patient

	if c.DepartmentID != nil {
		if dept, err := a.cases.Department(ctx, *c.DepartmentID); err == nil {
			in.Department = &dept
		}
	}
	if c.SedationID != nil {
		if sedation, err := a.cases.Sedation(ctx, *c.SedationID); err == nil {
			in.Sedation = &sedation
		}
	}

	in.Procedures, err = a.cases.Procedures(ctx, c.ID)
	if err != nil {
		return report.Input{}, err
	}
	in.Documents, err = a.cases.Documents(ctx, c.ID)
	if err != nil {
		return report.Input{}, err
	}

	assignments, err := a.workflow.Assignments(ctx, c.ID)
	if err != nil {
		return report.Input{}, err
	}
	for _, assignment := range assignments {
		user, err := a.cases.User(ctx, assignment.AssignedToID)
		if err != nil {
			logger.Log.WithError(err).WithField("user_id", assignment.AssignedToID).Error("assignment user missing")
			continue
		}
		in.Assignments = append(in.Assignments, report.Assignment{CaseAssignment: assignment, AssignedTo: user})
	}

	candidates := make(map[int64]string, len(in.Procedures))
	for _, link := range in.Procedures {
		if link.Procedure != nil {
			candidates[link.ID] = link.Procedure.DisplayName()
		}
	}

	in.Contents = make(map[int64]models.DocumentContent, len(in.Documents))
	in.ImageData = make(map[int64][]byte)
	for _, doc := range in.Documents {
		data, err := a.files.Fetch(ctx, doc.FilePath)
		if err != nil {
			logger.Log.WithError(err).WithFields(map[string]interface{}{
				"document_id": doc.ID,
				"file_path":   doc.FilePath,
			}).Error("document file unavailable")
			continue
		}
		in.Contents[doc.ID] = a.analyzer.Analyze(ctx, data, doc.FileType, doc.OriginalFilename, candidates)
		switch doc.FileType {
		case "image/jpeg", "image/png", "image/gif", "image/tiff", "image/bmp":
			in.ImageData[doc.ID] = data
		}
	}
	return in, nil
}
