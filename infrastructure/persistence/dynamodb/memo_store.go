package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"memo-backend/application/ports"
	"memo-backend/domain/core/entities"
	"memo-backend/domain/core/valueobjects"
	pkgerrors "memo-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

const (
	memoEntityType = "MEMO"
	metadataSK     = "METADATA"
)

// API is the subset of the DynamoDB client used by MemoStore.
// *dynamodb.Client satisfies it.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// MemoStore implements ports.PrimaryStore on a single DynamoDB table.
// Version checks are done by DynamoDB condition expressions, never by a read first.
type MemoStore struct {
	client     API
	tableName  string
	ownerIndex string
	logger     *zap.Logger
}

// NewMemoStore creates a new MemoStore
func NewMemoStore(client API, tableName, ownerIndex string, logger *zap.Logger) *MemoStore {
	return &MemoStore{
		client:     client,
		tableName:  tableName,
		ownerIndex: ownerIndex,
		logger:     logger,
	}
}

var _ ports.PrimaryStore = (*MemoStore)(nil)

// memoItem represents the DynamoDB item structure for a memo
type memoItem struct {
	PK         string   `dynamodbav:"PK"`
	SK         string   `dynamodbav:"SK"`
	GSI1PK     string   `dynamodbav:"GSI1PK"` // Owner listing
	GSI1SK     string   `dynamodbav:"GSI1SK"`
	EntityType string   `dynamodbav:"EntityType"`
	MemoID     string   `dynamodbav:"MemoID"`
	OwnerID    string   `dynamodbav:"OwnerID"`
	Title      string   `dynamodbav:"Title"`
	Content    string   `dynamodbav:"Content"`
	Tags       []string `dynamodbav:"Tags"`
	CreatedAt  string   `dynamodbav:"CreatedAt"`
	UpdatedAt  string   `dynamodbav:"UpdatedAt"`
	Version    int      `dynamodbav:"Version"`
}

func memoPK(id string) string    { return fmt.Sprintf("MEMO#%s", id) }
func ownerPK(owner string) string { return fmt.Sprintf("OWNER#%s", owner) }

func (s *MemoStore) key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: memoPK(id)},
		"SK": &types.AttributeValueMemberS{Value: metadataSK},
	}
}

func toItem(memo *entities.Memo) memoItem {
	id := memo.ID().String()
	return memoItem{
		PK:         memoPK(id),
		SK:         metadataSK,
		GSI1PK:     ownerPK(memo.OwnerID()),
		GSI1SK:     memoPK(id),
		EntityType: memoEntityType,
		MemoID:     id,
		OwnerID:    memo.OwnerID(),
		Title:      memo.Title(),
		Content:    memo.Content(),
		Tags:       memo.Tags(),
		CreatedAt:  memo.CreatedAt().Format(time.RFC3339Nano),
		UpdatedAt:  memo.UpdatedAt().Format(time.RFC3339Nano),
		Version:    memo.Version(),
	}
}

func fromItem(av map[string]types.AttributeValue) (*entities.Memo, error) {
	var item memoItem
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal memo: %w", err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid CreatedAt: %w", err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, item.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid UpdatedAt: %w", err)
	}
	return entities.ReconstructMemo(entities.MemoSnapshot{
		ID:        item.MemoID,
		Title:     item.Title,
		Content:   item.Content,
		Tags:      item.Tags,
		OwnerID:   item.OwnerID,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		Version:   item.Version,
	})
}

// Get retrieves a memo with a strongly consistent read
func (s *MemoStore) Get(ctx context.Context, id valueobjects.MemoID) (*entities.Memo, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            s.key(id.String()),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, storageUnavailable("get", err)
	}
	if result.Item == nil {
		return nil, nil
	}

	memo, err := fromItem(result.Item)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "corrupt memo item %s", id.String())
	}
	return memo, nil
}

// ListByOwner queries the owner index, following every page
func (s *MemoStore) ListByOwner(ctx context.Context, ownerID string) ([]*entities.Memo, error) {
	keyExpr := expression.Key("GSI1PK").Equal(expression.Value(ownerPK(ownerID)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyExpr).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		IndexName:                 aws.String(s.ownerIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})

	memos := make([]*entities.Memo, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, storageUnavailable("list_by_owner", err)
		}
		for _, item := range page.Items {
			memo, err := fromItem(item)
			if err != nil {
				s.logger.Warn("Failed to parse memo item", zap.Error(err), zap.String("ownerID", ownerID))
				continue
			}
			memos = append(memos, memo)
		}
	}

	return memos, nil
}

// Insert creates a memo only if its key is unused
func (s *MemoStore) Insert(ctx context.Context, memo *entities.Memo) error {
	av, err := attributevalue.MarshalMap(toItem(memo))
	if err != nil {
		return fmt.Errorf("failed to marshal memo: %w", err)
	}

	expr, err := expression.NewBuilder().
		WithCondition(expression.Name("PK").AttributeNotExists()).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(s.tableName),
		Item:                      av,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return pkgerrors.NewConflictError("memo already exists").
				WithDetail("memoID", memo.ID().String())
		}
		return storageUnavailable("insert", err)
	}

	s.logger.Debug("Memo inserted",
		zap.String("memoID", memo.ID().String()),
		zap.String("ownerID", memo.OwnerID()),
	)
	return nil
}

// UpdateIfVersion applies memo's mutable fields and version expectedVersion+1
// in one conditional write and returns the item as stored. Owner and creation
// time are never part of the update. A failed condition is reported as
// CASVersionMismatch.
func (s *MemoStore) UpdateIfVersion(ctx context.Context, memo *entities.Memo, expectedVersion int) (*entities.Memo, ports.CASResult, error) {
	update := expression.
		Set(expression.Name("Title"), expression.Value(memo.Title())).
		Set(expression.Name("Content"), expression.Value(memo.Content())).
		Set(expression.Name("Tags"), expression.Value(memo.Tags())).
		Set(expression.Name("UpdatedAt"), expression.Value(memo.UpdatedAt().Format(time.RFC3339Nano))).
		Set(expression.Name("Version"), expression.Value(expectedVersion+1))

	condition := expression.Name("PK").AttributeExists().
		And(expression.Name("Version").Equal(expression.Value(expectedVersion)))

	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(condition).
		Build()
	if err != nil {
		return nil, ports.CASVersionMismatch, fmt.Errorf("failed to build expression: %w", err)
	}

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       s.key(memo.ID().String()),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			s.logger.Debug("Memo version mismatch",
				zap.String("memoID", memo.ID().String()),
				zap.Int("expectedVersion", expectedVersion),
			)
			return nil, ports.CASVersionMismatch, nil
		}
		return nil, ports.CASVersionMismatch, storageUnavailable("update_if_version", err)
	}

	// The write landed; a record we cannot read back is still reported as a
	// fault so the caller re-reads before trusting it.
	stored, err := fromItem(out.Attributes)
	if err != nil {
		return nil, ports.CASApplied, fmt.Errorf("failed to decode updated memo: %w", err)
	}

	s.logger.Debug("Memo updated",
		zap.String("memoID", memo.ID().String()),
		zap.Int("version", stored.Version()),
	)
	return stored, ports.CASApplied, nil
}

// Delete removes a memo; DynamoDB treats missing keys as success
func (s *MemoStore) Delete(ctx context.Context, id valueobjects.MemoID) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       s.key(id.String()),
	})
	if err != nil {
		return storageUnavailable("delete", err)
	}

	s.logger.Debug("Memo deleted", zap.String("memoID", id.String()))
	return nil
}

// Exists checks for the memo key without fetching attributes
func (s *MemoStore) Exists(ctx context.Context, id valueobjects.MemoID) (bool, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(s.tableName),
		Key:                  s.key(id.String()),
		ConsistentRead:       aws.Bool(true),
		ProjectionExpression: aws.String("PK"),
	})
	if err != nil {
		return false, storageUnavailable("exists", err)
	}
	return result.Item != nil, nil
}

// Ping checks the table is reachable with a point read of a sentinel key
func (s *MemoStore) Ping(ctx context.Context) error {
	_, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(s.tableName),
		Key:                  s.key("health-check"),
		ProjectionExpression: aws.String("PK"),
	})
	if err != nil {
		return storageUnavailable("ping", err)
	}
	return nil
}

// storageUnavailable maps an SDK failure to StorageUnavailable, keeping the
// service error code (ThrottlingException, ResourceNotFoundException, ...).
func storageUnavailable(operation string, err error) error {
	appErr := pkgerrors.NewStorageUnavailableError(operation, err)
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		appErr.WithCode(apiErr.ErrorCode())
	}
	return appErr
}
