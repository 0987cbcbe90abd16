package dynamorepository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/apperr"
	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/models"
	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/repository"
)

const (
	DefaultTableName = "opportunities"
	// maxUpdateAttempts bounds retries when another writer bumps the version.
	maxUpdateAttempts = 3
)

// API is the subset of *dynamodb.Client the store uses.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, opts ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

type opportunityItem struct {
	ID         string         `dynamodbav:"id"`
	Seq        int64          `dynamodbav:"seq"`
	Version    int64          `dynamodbav:"version"`
	Title      string         `dynamodbav:"title"`
	Asset      string         `dynamodbav:"asset"`
	Type       string         `dynamodbav:"type"`
	Confidence float64        `dynamodbav:"confidence"`
	Rationale  string         `dynamodbav:"rationale"`
	Sources    []string       `dynamodbav:"sources"`
	Metrics    map[string]any `dynamodbav:"metrics"`
	CreatedAt  string         `dynamodbav:"created_at"`
	ExpiresAt  *string        `dynamodbav:"expires_at,omitempty"`
	Status     string         `dynamodbav:"status"`
	Tags       []string       `dynamodbav:"tags"`
}

// Store persists opportunities in a DynamoDB table keyed by id.
//
// Table requirements:
//   - PK: id (string)
type Store struct {
	ddb       API
	tableName string
	locks     repository.KeyedMutex
	now       func() time.Time
}

var _ repository.Store = (*Store)(nil)

func New(ddb API, tableName string) *Store {
	if strings.TrimSpace(tableName) == "" {
		tableName = DefaultTableName
	}
	return &Store{ddb: ddb, tableName: tableName, now: time.Now}
}

func (s *Store) Add(ctx context.Context, c models.Candidate) (models.Opportunity, error) {
	const op = "dynamo.add"
	c.ID = strings.TrimSpace(c.ID)
	if c.ID == "" {
		c.ID = models.NewID()
	}
	unlock := s.locks.Lock(c.ID)
	defer unlock()

	now := s.now()
	o, err := models.NewOpportunity(op, c, now)
	if err != nil {
		return models.Opportunity{}, err
	}
	it := toItem(o, now.UnixNano(), 1)
	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return models.Opportunity{}, fmt.Errorf("%s: %w", op, err)
	}
	_, err = s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{
			"#id": "id",
		},
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return models.Opportunity{}, apperr.Validation(op, "opportunity %q already exists", o.ID)
		}
		return models.Opportunity{}, fmt.Errorf("%s: %w", op, err)
	}
	return o, nil
}

func (s *Store) Get(ctx context.Context, id string) (models.Opportunity, error) {
	it, err := s.get(ctx, "dynamo.get", id)
	if err != nil {
		return models.Opportunity{}, err
	}
	return fromItem(it), nil
}

func (s *Store) Update(ctx context.Context, id string, p models.Patch) (models.Opportunity, bool, error) {
	const op = "dynamo.update"
	unlock := s.locks.Lock(id)
	defer unlock()

	for attempt := 1; ; attempt++ {
		it, err := s.get(ctx, op, id)
		if err != nil {
			return models.Opportunity{}, false, err
		}
		next, changed, err := models.Apply(op, fromItem(it), p)
		if err != nil {
			return models.Opportunity{}, false, err
		}
		if !changed {
			return next, false, nil
		}
		av, err := attributevalue.MarshalMap(toItem(next, it.Seq, it.Version+1))
		if err != nil {
			return models.Opportunity{}, false, fmt.Errorf("%s: %w", op, err)
		}
		_, err = s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:           aws.String(s.tableName),
			Item:                av,
			ConditionExpression: aws.String("#version = :version"),
			ExpressionAttributeNames: map[string]string{
				"#version": "version",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":version": &types.AttributeValueMemberN{Value: strconv.FormatInt(it.Version, 10)},
			},
		})
		if err == nil {
			return next, true, nil
		}
		var cfe *types.ConditionalCheckFailedException
		if !errors.As(err, &cfe) {
			return models.Opportunity{}, false, fmt.Errorf("%s: %w", op, err)
		}
		if attempt >= maxUpdateAttempts {
			return models.Opportunity{}, false, fmt.Errorf("%s: %s kept changing underneath the update", op, id)
		}
	}
}

func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	const op = "dynamo.delete"
	unlock := s.locks.Lock(id)
	defer unlock()

	out, err := s.ddb.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return len(out.Attributes) > 0, nil
}

// List scans the table with strongly consistent reads and orders the rows
// in process.
func (s *Store) List(ctx context.Context, filter repository.ListFilter) ([]models.Opportunity, error) {
	const op = "dynamo.list"
	p := dynamodb.NewScanPaginator(s.ddb, &dynamodb.ScanInput{
		TableName:      aws.String(s.tableName),
		ConsistentRead: aws.Bool(true),
	})
	var rows []repository.Sequenced
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		var items []opportunityItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		for _, it := range items {
			o := fromItem(it)
			if !filter.Matches(o) {
				continue
			}
			rows = append(rows, repository.Sequenced{Opportunity: o, Seq: it.Seq})
		}
	}
	return repository.SortCanonical(rows), nil
}

func (s *Store) get(ctx context.Context, op, id string) (opportunityItem, error) {
	out, err := s.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return opportunityItem{}, fmt.Errorf("%s: %w", op, err)
	}
	if len(out.Item) == 0 {
		return opportunityItem{}, apperr.NotFound(op, id)
	}
	var it opportunityItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return opportunityItem{}, fmt.Errorf("%s: %w", op, err)
	}
	return it, nil
}

func toItem(o models.Opportunity, seq, version int64) opportunityItem {
	return opportunityItem{
		ID:         o.ID,
		Seq:        seq,
		Version:    version,
		Title:      o.Title,
		Asset:      o.Asset,
		Type:       string(o.Type),
		Confidence: o.Confidence,
		Rationale:  o.Rationale,
		Sources:    nonNil(o.Sources),
		Metrics:    o.Metrics,
		CreatedAt:  o.CreatedAt,
		ExpiresAt:  o.ExpiresAt,
		Status:     string(o.Status),
		Tags:       nonNil(o.Tags),
	}
}

func fromItem(it opportunityItem) models.Opportunity {
	metrics := it.Metrics
	if metrics == nil {
		metrics = map[string]any{}
	}
	return models.Opportunity{
		ID:         it.ID,
		Title:      it.Title,
		Asset:      it.Asset,
		Type:       models.OpportunityType(it.Type),
		Confidence: it.Confidence,
		Rationale:  it.Rationale,
		Sources:    nonNil(it.Sources),
		Metrics:    metrics,
		CreatedAt:  it.CreatedAt,
		ExpiresAt:  it.ExpiresAt,
		Status:     models.Status(it.Status),
		Tags:       nonNil(it.Tags),
	}
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
