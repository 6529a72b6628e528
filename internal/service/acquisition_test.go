package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"shortsync/internal/domain"
	"shortsync/internal/service/mocks"
)

type AcquisitionTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	fetcher    *mocks.MockFetcher
	transcoder *mocks.MockTranscoder

	tempDir   string
	outputDir string
	profile   domain.TranscodeProfile
	acquirer  *Orchestrator
}

func (s *AcquisitionTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.fetcher = mocks.NewMockFetcher(s.ctrl)
	s.transcoder = mocks.NewMockTranscoder(s.ctrl)

	s.tempDir = s.T().TempDir()
	s.outputDir = s.T().TempDir()
	s.profile = domain.TranscodeProfile{
		Name:      "h264-mp4",
		Extension: "mp4",
		Format:    "mp4",
		Args:      []string{"-c:v", "libx264"},
		Height:    1280,
	}

	s.acquirer = NewOrchestrator(s.fetcher, s.transcoder, OrchestratorConfig{
		OutputDir:        s.outputDir,
		TempDir:          s.tempDir,
		Language:         "en",
		FetchTimeout:     time.Minute,
		TranscodeTimeout: time.Minute,
	}, discardLogger())
	s.acquirer.now = func() time.Time { return time.Date(2025, 7, 11, 12, 0, 0, 0, time.UTC) }
}

func (s *AcquisitionTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestAcquisitionTestSuite(t *testing.T) {
	suite.Run(t, new(AcquisitionTestSuite))
}

func (s *AcquisitionTestSuite) candidate() domain.VideoCandidate {
	return domain.VideoCandidate{
		ID:              "v1",
		Title:           "Hello, World! #1",
		UploadDate:      "20250710",
		DurationSeconds: 90,
		Width:           720,
		Height:          1280,
		ChannelLabel:    "My Channel",
		ChannelURL:      "https://www.youtube.com/@chan",
		WebpageURL:      "https://www.youtube.com/watch?v=v1",
		Formats: []domain.FormatDescriptor{
			{FormatID: "137", HasVideo: true, Container: "mp4", Width: 720, Height: 1280},
			{FormatID: "140", HasAudio: true, Container: "m4a", Language: "en"},
		},
	}
}

// writingFetch writes the destination file and reports progress up to 100.
func writingFetch(_ context.Context, req domain.FetchRequest) <-chan domain.FetchEvent {
	events := make(chan domain.FetchEvent, 3)
	if err := os.WriteFile(req.Dest, []byte(req.FormatID), 0o644); err != nil {
		events <- domain.FetchEvent{Err: err}
	} else {
		events <- domain.FetchEvent{Percent: 50}
		events <- domain.FetchEvent{Percent: 100}
	}
	close(events)
	return events
}

func failingFetch(_ context.Context, _ domain.FetchRequest) <-chan domain.FetchEvent {
	events := make(chan domain.FetchEvent, 2)
	events <- domain.FetchEvent{Percent: 10}
	events <- domain.FetchEvent{Err: errors.New("HTTP Error 403: Forbidden")}
	close(events)
	return events
}

func (s *AcquisitionTestSuite) assertWorkDirsRemoved() {
	entries, err := os.ReadDir(s.tempDir)
	s.Require().NoError(err)
	s.Empty(entries)
}

func (s *AcquisitionTestSuite) TestAcquire_Success() {
	ctx := context.Background()
	wantOutput := filepath.Join(s.outputDir, "My_Channel", "Hello__World___1.mp4")

	s.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).DoAndReturn(writingFetch).Times(2)
	s.transcoder.EXPECT().Transcode(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req domain.TranscodeRequest) error {
			s.Equal(wantOutput, req.OutputPath)
			s.Equal("mp4", req.Format)
			s.Equal([]string{"-c:v", "libx264", "-vf", "scale=-2:1280"}, req.Args)
			s.FileExists(req.VideoPath)
			s.FileExists(req.AudioPath)
			s.Equal(".mp4", filepath.Ext(req.VideoPath))
			s.Equal(".m4a", filepath.Ext(req.AudioPath))
			return os.WriteFile(req.OutputPath, []byte("muxed"), 0o644)
		},
	)

	record, err := s.acquirer.Acquire(ctx, s.candidate(), s.profile)

	s.Require().NoError(err)
	s.Equal("v1", record.ID)
	s.Equal("Hello, World! #1", record.Title)
	s.Equal("https://www.youtube.com/@chan", record.ChannelURL)
	s.Equal("20250710", record.UploadDate)
	s.Equal(wantOutput, record.OutputPath)
	s.Equal(time.Date(2025, 7, 11, 12, 0, 0, 0, time.UTC), record.AcquiredAt)
	s.FileExists(wantOutput)
	s.assertWorkDirsRemoved()
}

func (s *AcquisitionTestSuite) TestAcquire_KeepsFileWithSameSanitizedName() {
	ctx := context.Background()
	taken := filepath.Join(s.outputDir, "My_Channel", "Hello__World___1.mp4")
	wantOutput := filepath.Join(s.outputDir, "My_Channel", "Hello__World___1_v1.mp4")
	s.Require().NoError(os.MkdirAll(filepath.Dir(taken), 0o755))
	s.Require().NoError(os.WriteFile(taken, []byte("other video"), 0o644))

	s.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).DoAndReturn(writingFetch).Times(2)
	s.transcoder.EXPECT().Transcode(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req domain.TranscodeRequest) error {
			s.Equal(wantOutput, req.OutputPath)
			return os.WriteFile(req.OutputPath, []byte("muxed"), 0o644)
		},
	)

	record, err := s.acquirer.Acquire(ctx, s.candidate(), s.profile)

	s.Require().NoError(err)
	s.Equal(wantOutput, record.OutputPath)

	data, err := os.ReadFile(taken)
	s.Require().NoError(err)
	s.Equal("other video", string(data))
}

func (s *AcquisitionTestSuite) TestAcquire_TranscodeFailureRemovesTempFiles() {
	ctx := context.Background()
	var videoPath, audioPath string

	s.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).DoAndReturn(writingFetch).Times(2)
	s.transcoder.EXPECT().Transcode(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req domain.TranscodeRequest) error {
			videoPath, audioPath = req.VideoPath, req.AudioPath
			return errors.New("exit status 1")
		},
	)

	record, err := s.acquirer.Acquire(ctx, s.candidate(), s.profile)

	s.Nil(record)
	s.ErrorIs(err, ErrTranscode)

	var acqErr *AcquisitionError
	s.Require().ErrorAs(err, &acqErr)
	s.Equal("v1", acqErr.VideoID)

	s.NoFileExists(videoPath)
	s.NoFileExists(audioPath)
	s.assertWorkDirsRemoved()
}

func (s *AcquisitionTestSuite) TestAcquire_StreamFailure() {
	ctx := context.Background()

	s.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, req domain.FetchRequest) <-chan domain.FetchEvent {
			if req.FormatID == "140" {
				return failingFetch(ctx, req)
			}
			return writingFetch(ctx, req)
		},
	).Times(2)

	record, err := s.acquirer.Acquire(ctx, s.candidate(), s.profile)

	s.Nil(record)
	s.ErrorIs(err, ErrStreamFetch)
	s.ErrorContains(err, "403")
	s.assertWorkDirsRemoved()
}

func (s *AcquisitionTestSuite) TestAcquire_FetcherWithoutFile() {
	ctx := context.Background()

	s.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ domain.FetchRequest) <-chan domain.FetchEvent {
			events := make(chan domain.FetchEvent)
			close(events)
			return events
		},
	).Times(2)

	_, err := s.acquirer.Acquire(ctx, s.candidate(), s.profile)

	s.ErrorIs(err, ErrStreamFetch)
	s.assertWorkDirsRemoved()
}

func (s *AcquisitionTestSuite) TestAcquire_NoSuitableFormat() {
	c := s.candidate()
	c.Formats = []domain.FormatDescriptor{{FormatID: "18", HasVideo: true, HasAudio: true}}

	record, err := s.acquirer.Acquire(context.Background(), c, s.profile)

	s.Nil(record)
	s.ErrorIs(err, ErrNoSuitableFormat)
	s.assertWorkDirsRemoved()
}

func (s *AcquisitionTestSuite) TestAcquire_Cancelled() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).DoAndReturn(writingFetch).Times(2)

	_, err := s.acquirer.Acquire(ctx, s.candidate(), s.profile)

	s.ErrorIs(err, ErrStreamFetch)
	s.ErrorIs(err, context.Canceled)
	s.assertWorkDirsRemoved()
}

func TestTranscodeArgs(t *testing.T) {
	base := []string{"-c:v", "libx264"}

	assert.Equal(t, []string{"-c:v", "libx264"}, TranscodeArgs(domain.TranscodeProfile{Args: base}))
	assert.Equal(t, []string{"-c:v", "libx264", "-vf", "scale=-2:720,fps=30"},
		TranscodeArgs(domain.TranscodeProfile{Args: base, Height: 720, FPS: 30}))
	assert.Equal(t, []string{"-c", "copy"},
		TranscodeArgs(domain.TranscodeProfile{Args: []string{"-c", "copy"}, Passthrough: true, Height: 720, FPS: 30}))
	assert.Equal(t, []string{"-c:v", "libx264"}, base)
}

func TestOutputPath(t *testing.T) {
	profile := domain.TranscodeProfile{Extension: "webm"}

	assert.Equal(t, filepath.Join("out", "Chan_1", "a_b_c.webm"),
		OutputPath("out", domain.VideoCandidate{ID: "x", Title: "a/b c", ChannelLabel: "Chan 1"}, profile))
	assert.Equal(t, filepath.Join("out", "_chan", "x.webm"),
		OutputPath("out", domain.VideoCandidate{ID: "x", ChannelURL: "https://www.youtube.com/@chan/"}, profile))
	assert.Equal(t, "___", SanitizeName("ü!."))
}

func (s *AcquisitionTestSuite) TestAcquire_PanickingFetcher() {
	ctx := context.Background()

	s.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, req domain.FetchRequest) <-chan domain.FetchEvent {
			if req.FormatID == "140" {
				panic("closed channel")
			}
			return writingFetch(ctx, req)
		},
	).Times(2)

	record, err := s.acquirer.Acquire(ctx, s.candidate(), s.profile)

	s.Nil(record)
	s.ErrorIs(err, ErrStreamFetch)
	s.ErrorIs(err, ErrPanic)
	s.assertWorkDirsRemoved()
}

func TestDisambiguatedPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "chan", "Hello__v_1.mp4"), DisambiguatedPath(filepath.Join("out", "chan", "Hello_.mp4"), "v-1"))
	assert.Equal(t, filepath.Join("out", "x_abc"), DisambiguatedPath(filepath.Join("out", "x"), "abc"))
}
