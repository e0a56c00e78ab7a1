package warehouse

import (
	bigquery "google.golang.org/api/bigquery/v2"
)

// Schema is an explicit column declaration for a load job. Schemas are never inferred.
type Schema = bigquery.TableSchema

func field(name, typ, mode string, fields ...*bigquery.TableFieldSchema) *bigquery.TableFieldSchema {
	return &bigquery.TableFieldSchema{Name: name, Type: typ, Mode: mode, Fields: fields}
}

// PostsSchema returns the schema of the posts table
func PostsSchema() *Schema {
	return &Schema{
		Fields: []*bigquery.TableFieldSchema{
			field("id", "INT64", "REQUIRED"),
			field("created_at", "STRING", "REQUIRED"),
			field("user", "RECORD", "REQUIRED",
				field("id", "INT64", "REQUIRED"),
				field("name", "STRING", "REQUIRED"),
				field("screen_name", "STRING", "REQUIRED"),
				field("location", "STRING", "NULLABLE"),
				field("description", "STRING", "NULLABLE"),
				field("protected", "BOOLEAN", "REQUIRED"),
				field("verified", "BOOLEAN", "REQUIRED"),
				field("url", "STRING", "NULLABLE"),
				field("followers_count", "INTEGER", "REQUIRED"),
				field("friends_count", "INTEGER", "REQUIRED"),
				field("listed_count", "INTEGER", "REQUIRED"),
				field("favourites_count", "INTEGER", "REQUIRED"),
				field("statuses_count", "INTEGER", "REQUIRED"),
				field("created_at", "STRING", "REQUIRED"),
			),
			field("full_text", "STRING", "REQUIRED"),
			field("truncated", "BOOLEAN", "REQUIRED"),
			field("source", "STRING", "NULLABLE"),
			field("entities", "RECORD", "NULLABLE",
				field("hashtags", "RECORD", "REPEATED",
					field("text", "STRING", "NULLABLE"),
				),
				field("media", "RECORD", "REPEATED",
					field("id", "INT64", "NULLABLE"),
					field("type", "STRING", "NULLABLE"),
					field("media_url_https", "STRING", "NULLABLE"),
				),
				field("urls", "RECORD", "REPEATED",
					field("expanded_url", "STRING", "NULLABLE"),
				),
				field("user_mentions", "RECORD", "REPEATED",
					field("id", "INT64", "NULLABLE"),
					field("screen_name", "STRING", "NULLABLE"),
				),
			),
			field("is_quote_status", "BOOLEAN", "REQUIRED"),
			field("quoted_status_id", "INT64", "NULLABLE"),
			field("in_reply_to_status_id", "INT64", "NULLABLE"),
			field("in_reply_to_user_id", "INT64", "NULLABLE"),
			field("loaded_at", "TIMESTAMP", "REQUIRED"),
		},
	}
}

// ActivitySchema returns the schema of the outreach activity table
func ActivitySchema() *Schema {
	return &Schema{
		Fields: []*bigquery.TableFieldSchema{
			field("action_status_id", "INT64", "REQUIRED"),
			field("actioned_user_id", "INT64", "REQUIRED"),
			field("payload", "STRING", "REQUIRED"),
			field("created_at", "STRING", "REQUIRED"),
		},
	}
}
