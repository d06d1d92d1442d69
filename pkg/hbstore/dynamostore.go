package hbstore

import (
	"context"
	"fmt"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/function61/lambda-heartbeat/pkg/hbdomain"
	"github.com/function61/lambda-heartbeat/pkg/workpool"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// GSI: check_partition (HASH), next_due_at (RANGE), projection ALL
	CheckIndex = "check-index"

	partitionQueryConcurrency = 4
)

// table layout. timestamps are epoch seconds so that next_due_at can be range-queried
// and expires_at works as the table's TTL attribute.
type dynamoMonitor struct {
	Slug           string `dynamodbav:"slug"`
	IntervalSecs   int64  `dynamodbav:"interval_secs"`
	LastPingAt     int64  `dynamodbav:"last_ping_at"`
	NextDueAt      int64  `dynamodbav:"next_due_at"`
	State          string `dynamodbav:"state"`
	LastAlertAt    *int64 `dynamodbav:"last_alert_at,omitempty"`
	AlertCount     int    `dynamodbav:"alert_count"`
	Paused         bool   `dynamodbav:"paused"`
	CheckPartition string `dynamodbav:"check_partition"`
	CreatedAt      int64  `dynamodbav:"created_at"`
	ExpiresAt      int64  `dynamodbav:"expires_at"`
}

type DynamoStore struct {
	db    dynamodbiface.DynamoDBAPI
	table *string
}

var _ Store = (*DynamoStore)(nil)

func NewDynamoStore(db dynamodbiface.DynamoDBAPI, table string) *DynamoStore {
	return &DynamoStore{
		db:    db,
		table: aws.String(table),
	}
}

func (d *DynamoStore) Get(ctx context.Context, slug string) (*hbdomain.Monitor, error) {
	out, err := d.db.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName:      d.table,
		Key:            slugKey(slug),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, unavailable(err)
	}

	if len(out.Item) == 0 {
		return nil, notFound(slug)
	}

	return unmarshalMonitor(out.Item)
}

// a single UpdateItem. the expression mirrors hbdomain.Ping(), which is then applied to
// the returned old image so the caller gets the committed record without a second read.
func (d *DynamoStore) UpsertOnPing(
	ctx context.Context,
	slug string,
	intervalOverride time.Duration,
	now time.Time,
) (*PingResult, error) {
	now = hbdomain.Timestamp(now)

	values := map[string]*dynamodb.AttributeValue{
		":now":       num(now.Unix()),
		":expires":   num(now.Add(hbdomain.Retention).Unix()),
		":ok":        str(string(hbdomain.StateOk)),
		":partition": str(hbdomain.PartitionFor(slug)),
		":false":     boolean(false),
		":zero":      num(0),
	}

	set := []string{
		"last_ping_at = :now",
		"expires_at = :expires",
		"#state = :ok",
		"check_partition = :partition",
		"created_at = if_not_exists(created_at, :now)",
		"#paused = if_not_exists(#paused, :false)",
		"alert_count = if_not_exists(alert_count, :zero)",
	}

	if intervalOverride != 0 {
		values[":interval"] = num(seconds(intervalOverride))
		values[":next_due"] = num(now.Add(intervalOverride).Unix())

		set = append(set,
			"interval_secs = :interval",
			"next_due_at = :next_due")
	} else {
		values[":default_interval"] = num(seconds(hbdomain.DefaultInterval))

		// operands refer to the pre-update item, so both see the same interval
		set = append(set,
			"interval_secs = if_not_exists(interval_secs, :default_interval)",
			"next_due_at = if_not_exists(interval_secs, :default_interval) + :now")
	}

	out, err := d.db.UpdateItemWithContext(ctx, &dynamodb.UpdateItemInput{
		TableName:                 d.table,
		Key:                       slugKey(slug),
		UpdateExpression:          aws.String("SET " + strings.Join(set, ", ")),
		ExpressionAttributeNames:  attributeNames("state", "paused"),
		ExpressionAttributeValues: values,
		ReturnValues:              aws.String(dynamodb.ReturnValueAllOld),
	})
	if err != nil {
		return nil, unavailable(err)
	}

	var previous *hbdomain.Monitor
	if len(out.Attributes) > 0 {
		previous, err = unmarshalMonitor(out.Attributes)
		if err != nil {
			return nil, err
		}
	}

	mon, recovered := hbdomain.Ping(previous, slug, intervalOverride, now)

	return &PingResult{
		Monitor:   mon,
		Previous:  previous,
		Recovered: recovered,
	}, nil
}

func (d *DynamoStore) MarkFailed(ctx context.Context, slug string, now time.Time) (*hbdomain.Monitor, error) {
	return d.updateExisting(ctx, slug, &dynamodb.UpdateItemInput{
		UpdateExpression: aws.String("SET next_due_at = :now"),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":now": num(hbdomain.Timestamp(now).Unix()),
		},
	})
}

func (d *DynamoStore) SetPaused(ctx context.Context, slug string, paused bool) (*hbdomain.Monitor, error) {
	return d.updateExisting(ctx, slug, &dynamodb.UpdateItemInput{
		UpdateExpression:         aws.String("SET #paused = :paused"),
		ExpressionAttributeNames: attributeNames("paused"),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":paused": boolean(paused),
		},
	})
}

func (d *DynamoStore) RecordAlert(ctx context.Context, slug string, at time.Time) (*hbdomain.Monitor, error) {
	out, err := d.db.UpdateItemWithContext(ctx, &dynamodb.UpdateItemInput{
		TableName: d.table,
		Key:       slugKey(slug),
		// a concurrent ping (next_due_at moved into the future) or pause invalidates the alert
		ConditionExpression:      aws.String("attribute_exists(slug) AND next_due_at <= :at AND (attribute_not_exists(#paused) OR #paused = :false)"),
		UpdateExpression:         aws.String("SET #state = :overdue, last_alert_at = :at, alert_count = if_not_exists(alert_count, :zero) + :one"),
		ExpressionAttributeNames: attributeNames("state", "paused"),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":at":      num(hbdomain.Timestamp(at).Unix()),
			":overdue": str(string(hbdomain.StateOverdue)),
			":false":   boolean(false),
			":zero":    num(0),
			":one":     num(1),
		},
		ReturnValues: aws.String(dynamodb.ReturnValueAllNew),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return nil, fmt.Errorf("%w: RecordAlert %s", ErrPreconditionFailed, slug)
		}

		return nil, unavailable(err)
	}

	return unmarshalMonitor(out.Attributes)
}

func (d *DynamoStore) Delete(ctx context.Context, slug string) error {
	if _, err := d.db.DeleteItemWithContext(ctx, &dynamodb.DeleteItemInput{
		TableName:           d.table,
		Key:                 slugKey(slug),
		ConditionExpression: aws.String("attribute_exists(slug)"), // to get error if item-to-delete not found
	}); err != nil {
		if isConditionalCheckFailed(err) {
			return notFound(slug)
		}

		return unavailable(err)
	}

	return nil
}

func (d *DynamoStore) ListAll(ctx context.Context) ([]hbdomain.Monitor, error) {
	monitors := []hbdomain.Monitor{}
	var unmarshalErr error

	if err := d.db.ScanPagesWithContext(ctx, &dynamodb.ScanInput{
		TableName: d.table,
	}, func(page *dynamodb.ScanOutput, lastPage bool) bool {
		monitors, unmarshalErr = appendMonitors(monitors, page.Items)
		return unmarshalErr == nil
	}); err != nil {
		return nil, unavailable(err)
	}

	return monitors, unmarshalErr
}

// fans out one range query per check partition, so cost is proportional to the amount
// of overdue monitors and not to the size of the table
func (d *DynamoStore) ScanOverdue(ctx context.Context, now time.Time) ([]hbdomain.Monitor, error) {
	now = hbdomain.Timestamp(now)

	overdue := []hbdomain.Monitor{}
	errs := []error{}
	mu := sync.Mutex{}

	workpool.ForEach(hbdomain.Partitions(), partitionQueryConcurrency, func(partition string) {
		monitors, err := d.queryOverdueInPartition(ctx, partition, now)

		mu.Lock()
		defer mu.Unlock()

		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", partition, err))
			return
		}

		overdue = append(overdue, monitors...)
	})

	if len(errs) > 0 {
		return nil, unavailable(errs[0])
	}

	return overdue, nil
}

func (d *DynamoStore) queryOverdueInPartition(
	ctx context.Context,
	partition string,
	now time.Time,
) ([]hbdomain.Monitor, error) {
	monitors := []hbdomain.Monitor{}
	var unmarshalErr error

	if err := d.db.QueryPagesWithContext(ctx, &dynamodb.QueryInput{
		TableName:                d.table,
		IndexName:                aws.String(CheckIndex),
		KeyConditionExpression:   aws.String("check_partition = :partition AND next_due_at <= :now"),
		FilterExpression:         aws.String("attribute_not_exists(#paused) OR #paused = :false"),
		ExpressionAttributeNames: attributeNames("paused"),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":partition": str(partition),
			":now":       num(now.Unix()),
			":false":     boolean(false),
		},
	}, func(page *dynamodb.QueryOutput, lastPage bool) bool {
		monitors, unmarshalErr = appendMonitors(monitors, page.Items)
		return unmarshalErr == nil
	}); err != nil {
		return nil, err
	}

	return monitors, unmarshalErr
}

// conditional on the monitor existing. input gets table, key, condition and return values.
func (d *DynamoStore) updateExisting(
	ctx context.Context,
	slug string,
	input *dynamodb.UpdateItemInput,
) (*hbdomain.Monitor, error) {
	input.TableName = d.table
	input.Key = slugKey(slug)
	input.ConditionExpression = aws.String("attribute_exists(slug)")
	input.ReturnValues = aws.String(dynamodb.ReturnValueAllNew)

	out, err := d.db.UpdateItemWithContext(ctx, input)
	if err != nil {
		if isConditionalCheckFailed(err) {
			return nil, notFound(slug)
		}

		return nil, unavailable(err)
	}

	return unmarshalMonitor(out.Attributes)
}

func appendMonitors(
	monitors []hbdomain.Monitor,
	items []map[string]*dynamodb.AttributeValue,
) ([]hbdomain.Monitor, error) {
	for _, item := range items {
		mon, err := unmarshalMonitor(item)
		if err != nil {
			return monitors, err
		}

		monitors = append(monitors, *mon)
	}

	return monitors, nil
}

func unmarshalMonitor(item map[string]*dynamodb.AttributeValue) (*hbdomain.Monitor, error) {
	record := dynamoMonitor{}
	if err := dynamodbattribute.UnmarshalMap(item, &record); err != nil {
		return nil, fmt.Errorf("unmarshalMonitor: %w", err)
	}

	mon := &hbdomain.Monitor{
		Slug:           record.Slug,
		Interval:       time.Duration(record.IntervalSecs) * time.Second,
		LastPingAt:     epoch(record.LastPingAt),
		NextDueAt:      epoch(record.NextDueAt),
		State:          hbdomain.State(record.State),
		AlertCount:     record.AlertCount,
		Paused:         record.Paused,
		CheckPartition: record.CheckPartition,
		CreatedAt:      epoch(record.CreatedAt),
		ExpiresAt:      epoch(record.ExpiresAt),
	}

	if record.LastAlertAt != nil {
		lastAlertAt := epoch(*record.LastAlertAt)
		mon.LastAlertAt = &lastAlertAt
	}

	return mon, nil
}

func slugKey(slug string) map[string]*dynamodb.AttributeValue {
	return map[string]*dynamodb.AttributeValue{
		"slug": str(slug),
	}
}

// "state" is a DynamoDB reserved word, so attributes are referenced as #<name>
func attributeNames(names ...string) map[string]*string {
	placeholders := map[string]*string{}
	for _, name := range names {
		placeholders["#"+name] = aws.String(name)
	}

	return placeholders
}

func isConditionalCheckFailed(err error) bool {
	errAws, ok := err.(awserr.Error)
	return ok && errAws.Code() == dynamodb.ErrCodeConditionalCheckFailedException
}

func str(value string) *dynamodb.AttributeValue {
	return &dynamodb.AttributeValue{S: aws.String(value)}
}

func num(value int64) *dynamodb.AttributeValue {
	return &dynamodb.AttributeValue{N: aws.String(strconv.FormatInt(value, 10))}
}

func boolean(value bool) *dynamodb.AttributeValue {
	return &dynamodb.AttributeValue{BOOL: aws.Bool(value)}
}

func seconds(d time.Duration) int64 {
	return int64(d / time.Second)
}

func epoch(secs int64) time.Time {
	return time.Unix(secs, 0).UTC()
}
