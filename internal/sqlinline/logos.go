package sqlinline

const QInsertLogo = `--sql 73caf064-99da-42d1-8353-39c1e6100846
insert into logos(account_id, prediction_id, prompt, image_url, created_at)
values ($1::uuid, $2::text, $3::text, $4::text, now())
returning id, created_at;
`

const QSelectLogo = `--sql 5e02adcf-83ab-435c-b71d-6176b69906cc
select id, account_id, prediction_id, prompt, image_url, coalesce(storage_key, ''), created_at
from logos
where id = $1::uuid
limit 1;
`

const QSelectLogoByPrediction = `--sql f9354611-6301-4d48-ab60-384aa5c78c73
select id, account_id, prediction_id, prompt, image_url, coalesce(storage_key, ''), created_at
from logos
where prediction_id = $1::text
limit 1;
`

const QListLogosByAccount = `--sql e648f095-ff46-4f03-abb8-bc7adf287f22
select id, account_id, prediction_id, prompt, image_url, coalesce(storage_key, ''), created_at
from logos
where account_id = $1::uuid
order by created_at desc
limit $2::int offset $3::int;
`

const QSetLogoStorageKey = `--sql 6335ef33-815d-426b-9f31-7b2d0d30106a
update logos
set storage_key = nullif($2::text, '')
where id = $1::uuid;
`

const QDeleteLogo = `--sql 0fe0e900-657a-406f-ad30-03a877e4cf49
delete from logos
where id = $1::uuid
  and account_id = $2::uuid;
`
