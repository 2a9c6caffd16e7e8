package report

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	athenatypes "github.com/aws/aws-sdk-go-v2/service/athena/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hlsrecon/internal/inventory"
	"hlsrecon/internal/types"
)

type fakeAthena struct {
	startInput  *athena.StartQueryExecutionInput
	state       athenatypes.QueryExecutionState
	resultPages []*athena.GetQueryResultsOutput
	resultCalls int
}

func (f *fakeAthena) StartQueryExecution(_ context.Context, params *athena.StartQueryExecutionInput, _ ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error) {
	f.startInput = params
	return &athena.StartQueryExecutionOutput{QueryExecutionId: aws.String("qe-report")}, nil
}

func (f *fakeAthena) GetQueryExecution(_ context.Context, _ *athena.GetQueryExecutionInput, _ ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error) {
	return &athena.GetQueryExecutionOutput{
		QueryExecution: &athenatypes.QueryExecution{
			Status: &athenatypes.QueryExecutionStatus{State: f.state},
		},
	}, nil
}

func (f *fakeAthena) GetQueryResults(_ context.Context, _ *athena.GetQueryResultsInput, _ ...func(*athena.Options)) (*athena.GetQueryResultsOutput, error) {
	page := f.resultPages[f.resultCalls]
	f.resultCalls++
	return page, nil
}

type putCall struct {
	bucket string
	key    string
	body   string
}

type fakeS3 struct {
	puts []putCall
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.puts = append(f.puts, putCall{
		bucket: aws.ToString(params.Bucket),
		key:    aws.ToString(params.Key),
		body:   string(body),
	})
	return &s3.PutObjectOutput{}, nil
}

type fakeMetrics struct {
	rows map[string]int
}

func (f *fakeMetrics) ReportRows(_ context.Context, product string, rows int) {
	if f.rows == nil {
		f.rows = make(map[string]int)
	}
	f.rows[product] = rows
}

func resultRow(cells ...string) athenatypes.Row {
	data := make([]athenatypes.Datum, len(cells))
	for i, c := range cells {
		data[i] = athenatypes.Datum{VarCharValue: aws.String(c)}
	}
	return athenatypes.Row{Data: data}
}

func resultPage(rows ...athenatypes.Row) *athena.GetQueryResultsOutput {
	return &athena.GetQueryResultsOutput{
		ResultSet: &athenatypes.ResultSet{Rows: rows},
	}
}

func headerRow() athenatypes.Row {
	return resultRow("short_name", "version", "filename", "size", "last_modified", "checksum")
}

func newTestGenerator(client *fakeAthena, s3Client S3Client, metrics MetricsRecorder) *Generator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	runner := inventory.NewRunner(client, "s3://query-results/", logger)
	return NewGenerator(runner, s3Client, "hls_inventory", "s3://hls-reports/reconciliation", "2.0", ".rpt", metrics, logger)
}

func TestGenerateUploadsOneReportPerProduct(t *testing.T) {
	client := &fakeAthena{
		state: athenatypes.QueryExecutionStateSucceeded,
		resultPages: []*athena.GetQueryResultsOutput{resultPage(
			headerRow(),
			resultRow("HLSL30", "2.0", "a.tif", "100", "2024-08-24T00:00:00.000Z", "NA"),
			resultRow("HLSL30", "2.0", "b.tif", "200", "2024-08-24T00:00:01.000Z", "NA"),
			resultRow("HLSS30", "2.0", "c.tif", "300", "2024-08-24T00:00:02.000Z", "NA"),
		)},
	}
	uploader := &fakeS3{}
	metrics := &fakeMetrics{}
	gen := newTestGenerator(client, uploader, metrics)

	counts, err := gen.Generate(context.Background(), Window{
		StartDate: time.Date(2024, 8, 24, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 8, 25, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"L30": 2, "S30": 1}, counts)

	require.Len(t, uploader.puts, 2)
	l30 := uploader.puts[0]
	assert.Equal(t, "hls-reports", l30.bucket)
	assert.Equal(t, "reconciliation/2024237/HLS_reconcile_2024237_L30_2.0.rpt", l30.key)
	assert.Equal(t,
		"HLSL30,2.0,a.tif,100,2024-08-24T00:00:00.000Z,NA\n"+
			"HLSL30,2.0,b.tif,200,2024-08-24T00:00:01.000Z,NA\n",
		l30.body)

	s30 := uploader.puts[1]
	assert.Equal(t, "reconciliation/2024237/HLS_reconcile_2024237_S30_2.0.rpt", s30.key)
	assert.Equal(t, "HLSS30,2.0,c.tif,300,2024-08-24T00:00:02.000Z,NA\n", s30.body)

	assert.Equal(t, map[string]int{"L30": 2, "S30": 1}, metrics.rows)
}

func TestGenerateDefaultsProductPrefixes(t *testing.T) {
	client := &fakeAthena{
		state:       athenatypes.QueryExecutionStateSucceeded,
		resultPages: []*athena.GetQueryResultsOutput{resultPage(headerRow())},
	}
	gen := newTestGenerator(client, &fakeS3{}, &fakeMetrics{})

	_, err := gen.Generate(context.Background(), Window{
		StartDate: time.Date(2024, 8, 24, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 8, 25, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	sql := aws.ToString(client.startInput.QueryString)
	assert.Contains(t, sql, "(S30|L30|S30_VI|L30_VI)/data/")
	assert.Contains(t, sql, "TIMESTAMP '2024-08-24'")
	assert.Contains(t, sql, "TIMESTAMP '2024-08-25'")
}

func TestGenerateNarrowedPrefixes(t *testing.T) {
	client := &fakeAthena{
		state:       athenatypes.QueryExecutionStateSucceeded,
		resultPages: []*athena.GetQueryResultsOutput{resultPage(headerRow())},
	}
	gen := newTestGenerator(client, &fakeS3{}, &fakeMetrics{})

	_, err := gen.Generate(context.Background(), Window{
		StartDate:       time.Date(2024, 8, 24, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2024, 8, 25, 0, 0, 0, 0, time.UTC),
		ProductPrefixes: []string{"S30_VI", "L30_VI"},
	})
	require.NoError(t, err)

	sql := aws.ToString(client.startInput.QueryString)
	assert.Contains(t, sql, "(S30_VI|L30_VI)/data/")
	assert.NotContains(t, sql, "(S30|L30|S30_VI|L30_VI)")
}

func TestGenerateNoRows(t *testing.T) {
	client := &fakeAthena{
		state:       athenatypes.QueryExecutionStateSucceeded,
		resultPages: []*athena.GetQueryResultsOutput{resultPage(headerRow())},
	}
	uploader := &fakeS3{}
	metrics := &fakeMetrics{}
	gen := newTestGenerator(client, uploader, metrics)

	counts, err := gen.Generate(context.Background(), Window{
		StartDate: time.Date(2024, 8, 24, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 8, 25, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Empty(t, counts)
	assert.Empty(t, uploader.puts)
	assert.Empty(t, metrics.rows)
}

func TestGenerateQueryFailure(t *testing.T) {
	client := &fakeAthena{state: athenatypes.QueryExecutionStateFailed}
	uploader := &fakeS3{}
	gen := newTestGenerator(client, uploader, &fakeMetrics{})

	_, err := gen.Generate(context.Background(), Window{
		StartDate: time.Date(2024, 8, 24, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 8, 25, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeQueryFailed, appErr.Code)
	assert.Empty(t, uploader.puts)
}

func TestReportURL(t *testing.T) {
	url := ReportURL("s3://hls-reports/reconciliation", time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), "L30_VI", "2.0", ".rpt")
	want := "s3://hls-reports/reconciliation/2025182/HLS_reconcile_2025182_L30_VI_2.0.rpt"
	if url != want {
		t.Errorf("ReportURL = %q, want %q", url, want)
	}
}

func TestSplitObjectURL(t *testing.T) {
	bucket, key, err := splitObjectURL("s3://hls-reports/reconciliation/2025182/report.rpt")
	require.NoError(t, err)
	assert.Equal(t, "hls-reports", bucket)
	assert.Equal(t, "reconciliation/2025182/report.rpt", key)

	for _, bad := range []string{"hls-reports/key", "s3://", "s3://bucket-only", "s3://bucket-only/"} {
		if _, _, err := splitObjectURL(bad); err == nil {
			t.Errorf("splitObjectURL(%q) should fail", bad)
		}
	}
}
